package planning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"prod-planner/internal/storage"
)

// RefreshShortageFlags пересчитывает признак нехватки для каждого
// запланированного заказа, исключая его собственную резервацию.
func (s *Service) RefreshShortageFlags(ctx context.Context) (int, error) {
	var (
		flagged int
		err     error
	)
	doErr := s.coord.Do(ctx, func(ctx context.Context) error {
		flagged, err = s.refresh(ctx)
		return err
	})
	if doErr != nil {
		return 0, doErr
	}
	return flagged, nil
}

// refreshLocked - то же внутри координатора после записи. Ошибка только логируется:
// флаги - производные данные, их поправит следующий запуск по расписанию.
func (s *Service) refreshLocked(ctx context.Context) {
	if _, err := s.refresh(ctx); err != nil {
		s.log.Error("failed to refresh shortage flags", slog.String("error", err.Error()))
	}
}

func (s *Service) refresh(ctx context.Context) (int, error) {
	const op = "service.planning.refresh"

	start := time.Now()

	snap, err := s.engine.LoadSnapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	flags := make(map[int64]bool)
	flagged := 0
	for _, o := range snap.Orders {
		if o.Status != storage.OrderPlanned {
			continue
		}
		recipe, ok := snap.Recipes[o.RecipeID]
		if !ok {
			s.log.Warn("order references unknown recipe", slog.Int64("id", o.ID), slog.Int64("recipe_id", o.RecipeID))
			continue
		}

		report, err := snap.Check(recipe, o.TargetQuantityKg, o.ID)
		if err != nil {
			s.log.Warn("cannot evaluate order", slog.Int64("id", o.ID), slog.String("error", err.Error()))
			continue
		}

		short := !report.GloballySufficient
		if short {
			flagged++
		}
		if short != o.HasShortages {
			flags[o.ID] = short
		}
	}

	if len(flags) > 0 {
		if err := s.storage.SetShortageFlags(ctx, flags); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	s.metrics.RecordRefresh(flagged, time.Since(start))
	s.log.Debug("shortage flags refreshed", slog.Int("flagged", flagged), slog.Int("changed", len(flags)))
	return flagged, nil
}
