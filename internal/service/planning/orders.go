package planning

import (
	"context"
	"fmt"
	"log/slog"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

// CommitResult - итог записи. Если Committed == false, запись отклонена
// повторной проверкой, а Check содержит свежий отчёт для оператора.
type CommitResult struct {
	Committed bool                      `json:"committed"`
	Reason    string                    `json:"reason,omitempty"`
	Orders    []storage.ProductionOrder `json:"orders,omitempty"`
	Check     CheckResult               `json:"check"`
}

const (
	reasonCapacity = "daily capacity exceeded, confirm the split proposal"
	reasonShortage = "materials are short, accept shortages to create anyway"
)

// CreateOrder повторяет проверку внутри координатора и создаёт заказ.
// Нехватка материалов допускается только при acceptShortages.
func (s *Service) CreateOrder(ctx context.Context, in OrderInput, acceptShortages bool) (CommitResult, error) {
	const op = "service.planning.CreateOrder"

	if err := in.validate(); err != nil {
		return CommitResult{}, err
	}

	var res CommitResult
	err := s.coord.Do(ctx, func(ctx context.Context) error {
		snap, err := s.engine.LoadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		check, _, err := s.evaluate(snap, in.RecipeID, in.TargetQuantityKg, in.PlannedDate, nil)
		if err != nil {
			return err
		}
		res.Check = check

		if reason := rejection(check, acceptShortages); reason != "" {
			res.Reason = reason
			return nil
		}

		order, err := s.newOrder(ctx, in, "")
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		order.HasShortages = !check.Stock.GloballySufficient

		id, err := s.storage.CreateOrder(ctx, order)
		if err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		order.ID = id

		res.Committed = true
		s.refreshLocked(ctx)
		res.Orders = s.reload(ctx, []storage.ProductionOrder{order})
		return nil
	})
	if err != nil {
		return CommitResult{}, err
	}

	if !res.Committed {
		s.log.Info("order rejected at commit", slog.String("reason", res.Reason))
		return res, nil
	}

	o := res.Orders[0]
	s.metrics.RecordOrderCreated(string(o.Kind))
	s.log.Info("production order created",
		slog.Int64("id", o.ID),
		slog.String("code", o.Code),
		slog.String("target_kg", o.TargetQuantityKg.String()),
		slog.Bool("has_shortages", o.HasShortages),
	)
	return res, nil
}

// UpdateOrder - редактирование запланированного заказа. Собственная
// резервация заказа при проверке не учитывается.
func (s *Service) UpdateOrder(ctx context.Context, id int64, in OrderInput, acceptShortages bool) (CommitResult, error) {
	const op = "service.planning.UpdateOrder"

	if err := in.validate(); err != nil {
		return CommitResult{}, err
	}

	var res CommitResult
	err := s.coord.Do(ctx, func(ctx context.Context) error {
		existing, err := s.storage.GetOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: get order %d: %w", op, id, err)
		}
		if existing.Status != storage.OrderPlanned {
			return apperr.Validation("status", "order %s is %s, only planned orders can be edited", existing.Code, existing.Status)
		}
		if existing.Kind != in.Kind {
			return apperr.Validation("kind", "order kind cannot change from %s to %s", existing.Kind, in.Kind)
		}

		snap, err := s.engine.LoadSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		check, _, err := s.evaluate(snap, in.RecipeID, in.TargetQuantityKg, in.PlannedDate, &existing)
		if err != nil {
			return err
		}
		res.Check = check

		if reason := rejection(check, acceptShortages); reason != "" {
			res.Reason = reason
			return nil
		}

		agro, psd := payloads(in)
		batches, err := PlanBatches(in.Kind, in.TargetQuantityKg, agro, psd)
		if err != nil {
			return err
		}

		existing.RecipeID = in.RecipeID
		existing.TargetQuantityKg = in.TargetQuantityKg
		existing.PlannedDate = in.PlannedDate
		existing.ShelfLifeMonths = in.ShelfLifeMonths
		existing.Notes = in.Notes
		existing.Agro, existing.Psd = agro, psd
		existing.Batches = batches
		existing.HasShortages = !check.Stock.GloballySufficient

		if err := s.storage.UpdateOrder(ctx, existing); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}

		res.Committed = true
		s.refreshLocked(ctx)
		res.Orders = s.reload(ctx, []storage.ProductionOrder{existing})
		return nil
	})
	if err != nil {
		return CommitResult{}, err
	}

	if res.Committed {
		s.log.Info("production order updated", slog.Int64("id", id))
	}
	return res, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	const op = "service.planning.DeleteOrder"

	err := s.coord.Do(ctx, func(ctx context.Context) error {
		o, err := s.storage.GetOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: get order %d: %w", op, id, err)
		}
		if o.Status != storage.OrderPlanned {
			return apperr.Validation("status", "order %s is %s, only planned orders can be deleted", o.Code, o.Status)
		}

		if err := s.storage.DeleteOrder(ctx, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		s.refreshLocked(ctx)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("production order deleted", slog.Int64("id", id))
	return nil
}

// reload перечитывает заказы после обновления флагов нехватки.
func (s *Service) reload(ctx context.Context, orders []storage.ProductionOrder) []storage.ProductionOrder {
	out := make([]storage.ProductionOrder, 0, len(orders))
	for _, o := range orders {
		fresh, err := s.storage.GetOrder(ctx, o.ID)
		if err != nil {
			out = append(out, o)
			continue
		}
		out = append(out, fresh)
	}
	return out
}

func rejection(check CheckResult, acceptShortages bool) string {
	if !check.Capacity.Fits {
		return reasonCapacity
	}
	if !check.Stock.GloballySufficient && !acceptShortages {
		return reasonShortage
	}
	return ""
}

// newOrder собирает заказ с кодом из последовательности вида и партиями.
func (s *Service) newOrder(ctx context.Context, in OrderInput, splitGroup string) (storage.ProductionOrder, error) {
	agro, psd := payloads(in)
	batches, err := PlanBatches(in.Kind, in.TargetQuantityKg, agro, psd)
	if err != nil {
		return storage.ProductionOrder{}, err
	}

	seq, err := s.storage.NextOrderSeq(ctx, in.Kind)
	if err != nil {
		return storage.ProductionOrder{}, fmt.Errorf("order sequence: %w", err)
	}

	return storage.ProductionOrder{
		Code:             storage.FormatOrderCode(in.Kind, seq),
		Kind:             in.Kind,
		RecipeID:         in.RecipeID,
		TargetQuantityKg: in.TargetQuantityKg,
		PlannedDate:      in.PlannedDate,
		ShelfLifeMonths:  in.ShelfLifeMonths,
		Status:           storage.OrderPlanned,
		Notes:            in.Notes,
		SplitGroup:       splitGroup,
		Agro:             agro,
		Psd:              psd,
		Batches:          batches,
	}, nil
}
