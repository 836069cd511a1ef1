package adjustment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"prod-planner/internal/apperr"
	"prod-planner/internal/metrics"
	"prod-planner/internal/service/coordinator"
	"prod-planner/internal/service/release"
	"prod-planner/internal/storage"
)

type Storage interface {
	GetOrder(ctx context.Context, id int64) (storage.ProductionOrder, error)
	GetStockUnit(ctx context.Context, id string) (storage.StockUnit, error)
	GetAdjustmentOrder(ctx context.Context, id string) (storage.AdjustmentOrder, error)
	ListAdjustmentOrders(ctx context.Context, productionOrderID int64) ([]storage.AdjustmentOrder, error)
	ActiveAdjustmentForBatch(ctx context.Context, batchID string) (storage.AdjustmentOrder, error)
	SaveAdjustmentOrder(ctx context.Context, a storage.AdjustmentOrder) error
}

// Recorder - физическое списание со склада. Списание, событие в журнале
// и новый набранный вес корректировки записываются вместе или не записываются вовсе.
type Recorder interface {
	RecordAdjustmentDraw(ctx context.Context, d storage.Draw, a storage.AdjustmentOrder) (storage.ConsumedMaterial, error)
}

type Config struct {
	AutoDrawDelay    time.Duration
	StationID        string
	ContainerPattern string
}

type Workflow struct {
	log       *slog.Logger
	storage   Storage
	recorder  Recorder
	coord     *coordinator.Coordinator
	metrics   *metrics.Metrics
	delay     time.Duration
	stationID string
	container *regexp.Regexp
	now       func() time.Time
}

func New(
	log *slog.Logger,
	st Storage,
	recorder Recorder,
	coord *coordinator.Coordinator,
	m *metrics.Metrics,
	cfg Config,
) (*Workflow, error) {
	const op = "adjustment.New"

	pattern := cfg.ContainerPattern
	if pattern == "" {
		pattern = `^[0-9]{2,3}$`
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: container pattern: %w", op, err)
	}

	return &Workflow{
		log:       log,
		storage:   st,
		recorder:  recorder,
		coord:     coord,
		metrics:   m,
		delay:     cfg.AutoDrawDelay,
		stationID: cfg.StationID,
		container: re,
		now:       time.Now,
	}, nil
}

type MaterialRequest struct {
	ProductName string
	QuantityKg  decimal.Decimal
}

type CreateRequest struct {
	ProductionOrderID int64
	BatchID           *string
	Reason            storage.AdjustmentReason
	Materials         []MaterialRequest
}

// Create заводит корректировку. Для партии допускается только одна незавершённая.
func (w *Workflow) Create(ctx context.Context, req CreateRequest) (storage.AdjustmentOrder, error) {
	const op = "adjustment.Create"

	if err := validateCreate(req); err != nil {
		return storage.AdjustmentOrder{}, err
	}

	var created storage.AdjustmentOrder
	err := w.coord.Do(ctx, func(ctx context.Context) error {
		order, err := w.storage.GetOrder(ctx, req.ProductionOrderID)
		if err != nil {
			return fmt.Errorf("%s: get order %d: %w", op, req.ProductionOrderID, err)
		}
		if order.Status == storage.OrderCompleted {
			return apperr.Validation("production_order_id", "order %s is already completed", order.Code)
		}

		if req.BatchID != nil {
			batch := order.BatchByID(*req.BatchID)
			if batch == nil {
				return apperr.Validation("batch_id", "batch %s does not belong to order %s", *req.BatchID, order.Code)
			}
			if req.Reason.Analytical() {
				if err := release.CanSpawnAdjustment(*batch); err != nil {
					return err
				}
			}

			existing, err := w.storage.ActiveAdjustmentForBatch(ctx, *req.BatchID)
			switch {
			case err == nil:
				return &apperr.DuplicateOrderError{BatchID: *req.BatchID, ExistingID: existing.ID}
			case !errors.Is(err, apperr.ErrNotFound):
				return fmt.Errorf("%s: active adjustment: %w", op, err)
			}
		}

		now := w.now()
		created = storage.AdjustmentOrder{
			ID:                uuid.NewString(),
			ProductionOrderID: order.ID,
			BatchID:           req.BatchID,
			Reason:            req.Reason,
			Status:            storage.AdjustmentPlanned,
			Materials:         make([]storage.AdjustmentMaterial, 0, len(req.Materials)),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		for _, m := range req.Materials {
			created.Materials = append(created.Materials, storage.AdjustmentMaterial{
				ProductName:      m.ProductName,
				QuantityKg:       m.QuantityKg,
				PickedQuantityKg: decimal.Zero,
			})
		}

		if err := w.storage.SaveAdjustmentOrder(ctx, created); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return storage.AdjustmentOrder{}, err
	}

	w.metrics.RecordAdjustmentTransition(string(created.Status))
	w.log.Info("adjustment order created",
		slog.String("id", created.ID),
		slog.Int64("production_order_id", created.ProductionOrderID),
		slog.String("reason", string(created.Reason)),
	)
	return created, nil
}

func validateCreate(req CreateRequest) error {
	if !req.Reason.Valid() {
		return apperr.Validation("reason", "unknown reason %q", req.Reason)
	}
	if req.Reason.Analytical() && req.BatchID == nil {
		return apperr.Validation("batch_id", "reason %s requires a batch", req.Reason)
	}
	if len(req.Materials) == 0 {
		return apperr.Validation("materials", "at least one material is required")
	}

	seen := make(map[string]bool, len(req.Materials))
	for _, m := range req.Materials {
		if m.ProductName == "" {
			return apperr.Validation("materials", "product name is required")
		}
		if seen[m.ProductName] {
			return apperr.Validation("materials", "material %s is listed twice", m.ProductName)
		}
		seen[m.ProductName] = true
		if !m.QuantityKg.IsPositive() {
			return apperr.Validation("materials", "quantity of %s must be positive", m.ProductName)
		}
	}
	return nil
}

func (w *Workflow) Get(ctx context.Context, id string) (storage.AdjustmentOrder, error) {
	const op = "adjustment.Get"

	a, err := w.storage.GetAdjustmentOrder(ctx, id)
	if err != nil {
		return storage.AdjustmentOrder{}, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

func (w *Workflow) ListForOrder(ctx context.Context, productionOrderID int64) ([]storage.AdjustmentOrder, error) {
	const op = "adjustment.ListForOrder"

	list, err := w.storage.ListAdjustmentOrders(ctx, productionOrderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// AssignContainer: planned -> material_picking.
func (w *Workflow) AssignContainer(ctx context.Context, id, containerID string) (storage.AdjustmentOrder, error) {
	if !w.container.MatchString(containerID) {
		return storage.AdjustmentOrder{}, apperr.Validation("container_id",
			"container id %q does not match %s", containerID, w.container.String())
	}

	return w.transition(ctx, id, storage.AdjustmentPlanned, storage.AdjustmentMaterialPicking, func(a *storage.AdjustmentOrder) error {
		a.ContainerID = containerID
		return nil
	})
}

// StartProcessing: material_picking -> processing, только если каждый материал в допуске.
func (w *Workflow) StartProcessing(ctx context.Context, id string) (storage.AdjustmentOrder, error) {
	return w.transition(ctx, id, storage.AdjustmentMaterialPicking, storage.AdjustmentProcessing, func(a *storage.AdjustmentOrder) error {
		if items := OutOfTolerance(*a); len(items) > 0 {
			return &apperr.IncompleteError{Action: "start processing", Items: items}
		}
		return nil
	})
}

// Complete: processing -> completed, после подтверждения дозирования.
func (w *Workflow) Complete(ctx context.Context, id string) (storage.AdjustmentOrder, error) {
	return w.transition(ctx, id, storage.AdjustmentProcessing, storage.AdjustmentCompleted, func(a *storage.AdjustmentOrder) error {
		at := w.now()
		a.CompletedAt = &at
		return nil
	})
}

// OutOfTolerance перечисляет материалы вне допуска 5%.
func OutOfTolerance(a storage.AdjustmentOrder) []string {
	var items []string
	for _, m := range a.Materials {
		if !WithinTolerance(m.QuantityKg, m.PickedQuantityKg) {
			items = append(items, fmt.Sprintf("%s: picked %s of %s kg", m.ProductName, m.PickedQuantityKg, m.QuantityKg))
		}
	}
	return items
}

func (w *Workflow) transition(
	ctx context.Context,
	id string,
	from, to storage.AdjustmentStatus,
	apply func(a *storage.AdjustmentOrder) error,
) (storage.AdjustmentOrder, error) {
	const op = "adjustment.transition"

	var updated storage.AdjustmentOrder
	err := w.coord.Do(ctx, func(ctx context.Context) error {
		a, err := w.storage.GetAdjustmentOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: get %s: %w", op, id, err)
		}
		if a.Status != from {
			return apperr.Validation("status", "adjustment order is %s, expected %s", a.Status, from)
		}
		if err := apply(&a); err != nil {
			return err
		}

		a.Status = to
		a.UpdatedAt = w.now()
		if err := w.storage.SaveAdjustmentOrder(ctx, a); err != nil {
			return fmt.Errorf("%s: save: %w", op, err)
		}
		updated = a
		return nil
	})
	if err != nil {
		return storage.AdjustmentOrder{}, err
	}

	w.metrics.RecordAdjustmentTransition(string(to))
	w.log.Info("adjustment order status changed",
		slog.String("id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return updated, nil
}
