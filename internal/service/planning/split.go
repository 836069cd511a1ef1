package planning

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"prod-planner/internal/apperr"
	"prod-planner/internal/service/capacity"
	"prod-planner/internal/service/requirements"
	"prod-planner/internal/service/reservation"
	"prod-planner/internal/storage"
)

// ConfirmSplit создаёт N заказов по подтверждённому предложению разбиения.
// Предложение пересчитывается под координатором; если оно разошлось с тем,
// что видел оператор, запись отклоняется StaleCheckError.
func (s *Service) ConfirmSplit(ctx context.Context, in OrderInput, parts []capacity.Part, acceptShortages bool) (CommitResult, error) {
	const op = "service.planning.ConfirmSplit"

	if err := in.validate(); err != nil {
		return CommitResult{}, err
	}
	// при заполненном плановом дне предложение переносит заказ целиком одной частью
	if len(parts) == 0 {
		return CommitResult{}, apperr.Validation("parts", "a split needs at least one part")
	}
	if !capacity.SumParts(parts).Equal(in.TargetQuantityKg) {
		return CommitResult{}, apperr.Validation("parts", "parts sum to %s, target is %s", capacity.SumParts(parts), in.TargetQuantityKg)
	}

	var res CommitResult
	err := s.coord.Do(ctx, func(ctx context.Context) error {
		snap, err := s.engine.LoadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		check, recipe, err := s.evaluate(snap, in.RecipeID, in.TargetQuantityKg, in.PlannedDate, nil)
		if err != nil {
			return err
		}
		res.Check = check

		if check.Capacity.Fits {
			return &apperr.StaleCheckError{Reason: "the order fits its planned day now, no split is needed"}
		}
		if !capacity.SameParts(check.Capacity.Parts, parts) {
			return &apperr.StaleCheckError{Reason: "capacity changed since the proposal was made"}
		}

		// каждая часть проверяется с учётом уже принятых частей
		reserved := reservation.Reserve(snap.Orders, snap.Recipes, 0)
		shortages := make([]bool, len(parts))
		for i, p := range parts {
			req, err := requirements.Calculate(recipe, p.BatchSizeKg)
			if err != nil {
				return err
			}
			report := reservation.Evaluate(req, snap.Ledger, reserved)
			if !report.GloballySufficient && !acceptShortages {
				res.Check.Stock = report
				res.Reason = fmt.Sprintf("materials are short for part %d (%s)", i+1, capacity.DateKey(p.Date))
				return nil
			}
			shortages[i] = !report.GloballySufficient
			reserved.Add(req)
		}

		group := uuid.NewString()
		created := make([]storage.ProductionOrder, 0, len(parts))
		for i, p := range parts {
			partIn := in
			partIn.TargetQuantityKg = p.BatchSizeKg
			partIn.PlannedDate = p.Date
			if in.Kind == storage.KindPsd {
				partIn.BatchCount = partBatchCount(in.BatchCount, p.BatchSizeKg, in.TargetQuantityKg)
			}

			order, err := s.newOrder(ctx, partIn, group)
			if err != nil {
				s.rollback(ctx, created)
				return fmt.Errorf("%s: part %d: %w", op, i+1, err)
			}
			order.HasShortages = shortages[i]

			id, err := s.storage.CreateOrder(ctx, order)
			if err != nil {
				s.rollback(ctx, created)
				return fmt.Errorf("%s: save part %d: %w", op, i+1, err)
			}
			order.ID = id
			created = append(created, order)
		}

		res.Committed = true
		s.refreshLocked(ctx)
		res.Orders = s.reload(ctx, created)
		return nil
	})
	if err != nil {
		if apperr.Kind(err) == apperr.KindStale {
			s.metrics.RecordStaleCommit()
		}
		return CommitResult{}, err
	}

	if res.Committed {
		s.metrics.RecordSplitConfirmed()
		for _, o := range res.Orders {
			s.metrics.RecordOrderCreated(string(o.Kind))
		}
		s.log.Info("split confirmed",
			slog.String("split_group", res.Orders[0].SplitGroup),
			slog.Int("parts", len(res.Orders)),
		)
	}
	return res, nil
}

// rollback удаляет уже созданные части при сбое записи.
func (s *Service) rollback(ctx context.Context, created []storage.ProductionOrder) {
	for _, o := range created {
		if err := s.storage.DeleteOrder(ctx, o.ID); err != nil {
			s.log.Error("failed to roll back split part",
				slog.Int64("id", o.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
