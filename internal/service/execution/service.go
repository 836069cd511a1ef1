package execution

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"prod-planner/internal/apperr"
	"prod-planner/internal/metrics"
	"prod-planner/internal/service/coordinator"
	"prod-planner/internal/service/release"
	"prod-planner/internal/storage"
)

type Storage interface {
	GetOrder(ctx context.Context, id int64) (storage.ProductionOrder, error)
	GetRecipe(ctx context.Context, id int64) (storage.Recipe, error)
	UpdateOrder(ctx context.Context, o storage.ProductionOrder) error
	SaveBatch(ctx context.Context, b storage.Batch) error
	ListAdjustmentOrders(ctx context.Context, productionOrderID int64) ([]storage.AdjustmentOrder, error)
	AnnulConsumption(ctx context.Context, id string) (storage.ConsumedMaterial, error)
	AddProducedGood(ctx context.Context, g storage.ProducedGood) (storage.ProducedGood, error)
	AnnulProducedGood(ctx context.Context, id string) (storage.ProducedGood, error)
}

type Recorder interface {
	RecordDraw(ctx context.Context, d storage.Draw) (storage.ConsumedMaterial, error)
}

// ShortageRefresher вызывается после смены статуса заказа: заказ вне planned
// перестаёт резервировать материалы.
type ShortageRefresher interface {
	RefreshShortageFlags(ctx context.Context) (int, error)
}

type Service struct {
	log       *slog.Logger
	storage   Storage
	recorder  Recorder
	refresher ShortageRefresher
	coord     *coordinator.Coordinator
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(
	log *slog.Logger,
	st Storage,
	recorder Recorder,
	refresher ShortageRefresher,
	coord *coordinator.Coordinator,
	m *metrics.Metrics,
) *Service {
	return &Service{
		log:       log,
		storage:   st,
		recorder:  recorder,
		refresher: refresher,
		coord:     coord,
		metrics:   m,
		now:       time.Now,
	}
}

// batchOp - загрузка заказа и партии под координатором.
type batchOp func(o *storage.ProductionOrder, b *storage.Batch, recipe storage.Recipe) error

func (s *Service) withBatch(ctx context.Context, op string, orderID int64, batchID string, fn batchOp) (storage.Batch, error) {
	var out storage.Batch
	err := s.coord.Do(ctx, func(ctx context.Context) error {
		o, err := s.storage.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("%s: get order %d: %w", op, orderID, err)
		}
		b := o.BatchByID(batchID)
		if b == nil {
			return fmt.Errorf("%s: batch %s of order %s: %w", op, batchID, o.Code, apperr.ErrNotFound)
		}
		release.Normalize(b)

		recipe, err := s.storage.GetRecipe(ctx, o.RecipeID)
		if err != nil {
			return fmt.Errorf("%s: get recipe %d: %w", op, o.RecipeID, err)
		}

		if err := fn(&o, b, recipe); err != nil {
			return err
		}
		out = *b
		return nil
	})
	return out, err
}

// StartBatch запускает партию. Предыдущая по номеру партия должна быть уже начата,
// первый старт переводит заказ planned -> ongoing.
func (s *Service) StartBatch(ctx context.Context, orderID int64, batchID string) (storage.Batch, error) {
	const op = "service.execution.StartBatch"

	orderStarted := false
	b, err := s.withBatch(ctx, op, orderID, batchID, func(o *storage.ProductionOrder, b *storage.Batch, _ storage.Recipe) error {
		switch o.Status {
		case storage.OrderPaused, storage.OrderCompleted:
			return apperr.Validation("status", "order %s is %s", o.Code, o.Status)
		}
		if b.Status != storage.BatchPending {
			return apperr.Validation("batch", "batch %d is already %s", b.BatchNumber, b.Status)
		}
		for _, other := range o.Batches {
			if other.BatchNumber == b.BatchNumber-1 && other.Status == storage.BatchPending {
				return apperr.Incomplete("start batch", fmt.Sprintf("batch %d has not started", other.BatchNumber))
			}
		}

		at := s.now()
		b.Status = storage.BatchOngoing
		b.StartTime = &at
		if o.Status == storage.OrderPlanned {
			o.Status = storage.OrderOngoing
			orderStarted = true
		}

		if err := s.storage.UpdateOrder(ctx, *o); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return storage.Batch{}, err
	}

	s.log.Info("batch started", slog.Int64("order_id", orderID), slog.Int("batch_number", b.BatchNumber))
	if orderStarted {
		s.refresh(ctx)
	}
	return b, nil
}

// FinishWeighing отмечает окончание взвешивания ингредиента рецептуры.
func (s *Service) FinishWeighing(ctx context.Context, orderID int64, batchID, productName string) (storage.Batch, error) {
	const op = "service.execution.FinishWeighing"

	return s.withBatch(ctx, op, orderID, batchID, func(_ *storage.ProductionOrder, b *storage.Batch, recipe storage.Recipe) error {
		if b.Status != storage.BatchOngoing {
			return apperr.Validation("batch", "batch %d is %s, weighing needs an ongoing batch", b.BatchNumber, b.Status)
		}
		if !slices.Contains(recipe.IngredientNames(), productName) {
			return apperr.Validation("product_name", "%s is not an ingredient of recipe %s", productName, recipe.Name)
		}
		if slices.Contains(b.WeighingFinished, productName) {
			return nil
		}

		b.WeighingFinished = append(b.WeighingFinished, productName)
		if err := s.storage.SaveBatch(ctx, *b); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		return nil
	})
}

// RecordConsumption списывает сырьё с паллеты на партию через Recorder.
func (s *Service) RecordConsumption(
	ctx context.Context,
	orderID int64,
	batchID, productName, palletID string,
	quantity decimal.Decimal,
) (storage.ConsumedMaterial, error) {
	const op = "service.execution.RecordConsumption"

	if !quantity.IsPositive() {
		return storage.ConsumedMaterial{}, apperr.Validation("quantity", "quantity must be positive")
	}
	if palletID == "" {
		return storage.ConsumedMaterial{}, apperr.Validation("pallet_id", "pallet id is required")
	}

	var entry storage.ConsumedMaterial
	_, err := s.withBatch(ctx, op, orderID, batchID, func(o *storage.ProductionOrder, b *storage.Batch, _ storage.Recipe) error {
		if b.Status != storage.BatchOngoing {
			return apperr.Validation("batch", "batch %d is %s, consumption needs an ongoing batch", b.BatchNumber, b.Status)
		}

		id := b.ID
		recorded, err := s.recorder.RecordDraw(ctx, storage.Draw{
			OrderID:     o.ID,
			BatchID:     &id,
			ProductName: productName,
			Quantity:    quantity,
			Unit:        storage.UnitKg,
			PalletID:    palletID,
		})
		if err != nil {
			s.metrics.RecordDraw("pallet", false)
			return &apperr.DrawError{ProductName: productName, Err: err}
		}
		s.metrics.RecordDraw("pallet", true)
		entry = recorded
		return nil
	})
	if err != nil {
		return storage.ConsumedMaterial{}, err
	}

	s.log.Info("consumption recorded",
		slog.Int64("order_id", orderID),
		slog.String("product", productName),
		slog.String("quantity_kg", quantity.String()),
	)
	return entry, nil
}

// SetNirs меняет результат анализа партии. correction снимает ошибочно
// внесённый nok без корректировки.
func (s *Service) SetNirs(ctx context.Context, orderID int64, batchID string, to storage.NirsStatus, correction bool) (storage.Batch, error) {
	const op = "service.execution.SetNirs"

	b, err := s.withBatch(ctx, op, orderID, batchID, func(_ *storage.ProductionOrder, b *storage.Batch, recipe storage.Recipe) error {
		adjustments, err := s.storage.ListAdjustmentOrders(ctx, orderID)
		if err != nil {
			return fmt.Errorf("%s: adjustments: %w", op, err)
		}

		gate := release.NirsGate{Correction: correction, At: s.now()}
		for _, a := range adjustments {
			if a.BatchID == nil || *a.BatchID != b.ID {
				continue
			}
			if a.Status != storage.AdjustmentCompleted {
				gate.ActiveAdjustmentID = a.ID
				continue
			}
			if a.CompletedAt != nil && (gate.LastAdjustmentCompletedAt == nil || a.CompletedAt.After(*gate.LastAdjustmentCompletedAt)) {
				gate.LastAdjustmentCompletedAt = a.CompletedAt
			}
		}

		if err := release.SetNirs(b, recipe, to, gate); err != nil {
			return err
		}
		if err := s.storage.SaveBatch(ctx, *b); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return storage.Batch{}, err
	}

	if correction {
		s.log.Warn("nirs nok reverted as a correction",
			slog.Int64("order_id", orderID),
			slog.String("batch_id", batchID),
		)
	}
	return b, nil
}

func (s *Service) SetSampling(ctx context.Context, orderID int64, batchID string, to storage.SamplingStatus) (storage.Batch, error) {
	const op = "service.execution.SetSampling"

	return s.withBatch(ctx, op, orderID, batchID, func(_ *storage.ProductionOrder, b *storage.Batch, recipe storage.Recipe) error {
		if err := release.SetSampling(b, recipe, to); err != nil {
			return err
		}
		if err := s.storage.SaveBatch(ctx, *b); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		return nil
	})
}

// CompleteBatch закрывает партию; когда закрыты все, заказ становится completed.
func (s *Service) CompleteBatch(ctx context.Context, orderID int64, batchID string) (storage.Batch, error) {
	const op = "service.execution.CompleteBatch"

	orderDone := false
	b, err := s.withBatch(ctx, op, orderID, batchID, func(o *storage.ProductionOrder, b *storage.Batch, _ storage.Recipe) error {
		if err := release.Complete(b, s.now()); err != nil {
			return err
		}

		orderDone = true
		for _, other := range o.Batches {
			if other.Status != storage.BatchCompleted {
				orderDone = false
				break
			}
		}
		if orderDone {
			o.Status = storage.OrderCompleted
		}

		if err := s.storage.UpdateOrder(ctx, *o); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return storage.Batch{}, err
	}

	s.metrics.RecordBatchCompleted()
	s.log.Info("batch completed",
		slog.Int64("order_id", orderID),
		slog.Int("batch_number", b.BatchNumber),
		slog.Bool("order_completed", orderDone),
	)
	return b, nil
}

// RegisterProduction - выпуск готовой продукции, только из закрытой партии.
func (s *Service) RegisterProduction(ctx context.Context, orderID int64, batchID string, weight decimal.Decimal) (storage.ProducedGood, error) {
	const op = "service.execution.RegisterProduction"

	if !weight.IsPositive() {
		return storage.ProducedGood{}, apperr.Validation("produced_weight", "weight must be positive")
	}

	var good storage.ProducedGood
	_, err := s.withBatch(ctx, op, orderID, batchID, func(_ *storage.ProductionOrder, b *storage.Batch, _ storage.Recipe) error {
		if !release.ReadyForFinishedGoods(*b) {
			return apperr.Incomplete("register finished goods", fmt.Sprintf("batch %d is %s", b.BatchNumber, b.Status))
		}

		g, err := s.storage.AddProducedGood(ctx, storage.ProducedGood{BatchID: b.ID, ProducedWeight: weight})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		good = g
		return nil
	})
	if err != nil {
		return storage.ProducedGood{}, err
	}
	return good, nil
}

func (s *Service) AnnulConsumption(ctx context.Context, entryID string) (storage.ConsumedMaterial, error) {
	const op = "service.execution.AnnulConsumption"

	var entry storage.ConsumedMaterial
	err := s.coord.Do(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.storage.AnnulConsumption(ctx, entryID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return storage.ConsumedMaterial{}, err
	}

	s.log.Info("consumption annulled", slog.String("id", entryID))
	return entry, nil
}

func (s *Service) AnnulProduction(ctx context.Context, entryID string) (storage.ProducedGood, error) {
	const op = "service.execution.AnnulProduction"

	var good storage.ProducedGood
	err := s.coord.Do(ctx, func(ctx context.Context) error {
		var err error
		good, err = s.storage.AnnulProducedGood(ctx, entryID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return storage.ProducedGood{}, err
	}

	s.log.Info("production annulled", slog.String("id", entryID))
	return good, nil
}

func (s *Service) PauseOrder(ctx context.Context, id int64) (storage.ProductionOrder, error) {
	return s.setOrderStatus(ctx, id, storage.OrderOngoing, storage.OrderPaused)
}

func (s *Service) ResumeOrder(ctx context.Context, id int64) (storage.ProductionOrder, error) {
	return s.setOrderStatus(ctx, id, storage.OrderPaused, storage.OrderOngoing)
}

func (s *Service) setOrderStatus(ctx context.Context, id int64, from, to storage.OrderStatus) (storage.ProductionOrder, error) {
	const op = "service.execution.setOrderStatus"

	var out storage.ProductionOrder
	err := s.coord.Do(ctx, func(ctx context.Context) error {
		o, err := s.storage.GetOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: get order %d: %w", op, id, err)
		}
		if o.Status != from {
			return apperr.Validation("status", "order %s is %s, expected %s", o.Code, o.Status, from)
		}

		o.Status = to
		if err := s.storage.UpdateOrder(ctx, o); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		out = o
		return nil
	})
	if err != nil {
		return storage.ProductionOrder{}, err
	}

	s.log.Info("order status changed", slog.Int64("id", id), slog.String("from", string(from)), slog.String("to", string(to)))
	return out, nil
}

func (s *Service) refresh(ctx context.Context) {
	if s.refresher == nil {
		return
	}
	if _, err := s.refresher.RefreshShortageFlags(ctx); err != nil {
		s.log.Error("failed to refresh shortage flags", slog.String("error", err.Error()))
	}
}
