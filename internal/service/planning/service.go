package planning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"prod-planner/internal/apperr"
	"prod-planner/internal/metrics"
	"prod-planner/internal/service/capacity"
	"prod-planner/internal/service/coordinator"
	"prod-planner/internal/service/reservation"
	"prod-planner/internal/storage"
)

type Storage interface {
	reservation.Storage
	GetOrder(ctx context.Context, id int64) (storage.ProductionOrder, error)
	NextOrderSeq(ctx context.Context, kind storage.OrderKind) (int, error)
	CreateOrder(ctx context.Context, o storage.ProductionOrder) (int64, error)
	UpdateOrder(ctx context.Context, o storage.ProductionOrder) error
	DeleteOrder(ctx context.Context, id int64) error
	SetShortageFlags(ctx context.Context, flags map[int64]bool) error
}

type Service struct {
	log       *slog.Logger
	storage   Storage
	engine    *reservation.Engine
	scheduler capacity.Scheduler
	coord     *coordinator.Coordinator
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(
	log *slog.Logger,
	st Storage,
	scheduler capacity.Scheduler,
	coord *coordinator.Coordinator,
	m *metrics.Metrics,
) *Service {
	return &Service{
		log:       log,
		storage:   st,
		engine:    reservation.NewEngine(st, time.Now),
		scheduler: scheduler,
		coord:     coord,
		metrics:   m,
		now:       time.Now,
	}
}

// OrderInput - данные заказа от планировщика. Поля вида заказа задаются
// только для своего вида: MixerCapacityKg для AGRO, BatchCount для PSD.
type OrderInput struct {
	Kind             storage.OrderKind
	RecipeID         int64
	TargetQuantityKg decimal.Decimal
	PlannedDate      time.Time
	ShelfLifeMonths  int
	Notes            string
	MixerCapacityKg  decimal.Decimal
	BatchCount       int
}

func (in OrderInput) validate() error {
	if !in.Kind.Valid() {
		return apperr.Validation("kind", "unknown order kind %q", in.Kind)
	}
	if in.RecipeID <= 0 {
		return apperr.Validation("recipe_id", "recipe is required")
	}
	if !in.TargetQuantityKg.IsPositive() {
		return apperr.Validation("target_quantity_kg", "must be positive, got %s", in.TargetQuantityKg)
	}
	if in.PlannedDate.IsZero() {
		return apperr.Validation("planned_date", "planned date is required")
	}
	if in.ShelfLifeMonths <= 0 {
		return apperr.Validation("shelf_life_months", "must be positive, got %d", in.ShelfLifeMonths)
	}

	switch in.Kind {
	case storage.KindAgro:
		if !in.MixerCapacityKg.IsPositive() {
			return apperr.Validation("mixer_capacity_kg", "AGRO run needs a positive mixer capacity")
		}
		if agroBatchCount(in.TargetQuantityKg, in.MixerCapacityKg).GreaterThan(decimal.NewFromInt(MaxBatches)) {
			return apperr.Validation("mixer_capacity_kg",
				"mixer capacity %s kg is too small for %s kg, max %d batches", in.MixerCapacityKg, in.TargetQuantityKg, MaxBatches)
		}
	case storage.KindPsd:
		if in.BatchCount < 1 {
			return apperr.Validation("batch_count", "PSD task needs at least one batch")
		}
		if in.BatchCount > MaxBatches {
			return apperr.Validation("batch_count", "%d batches requested, max %d", in.BatchCount, MaxBatches)
		}
	}
	return nil
}

// CheckInput - запрос проверки без записи. ExcludeID - редактируемый заказ.
type CheckInput struct {
	RecipeID         int64
	TargetQuantityKg decimal.Decimal
	PlannedDate      time.Time
	ExcludeID        int64
}

// CheckResult - мягкие условия возвращаются данными: нехватка и предложение разбиения.
type CheckResult struct {
	Stock    reservation.Report `json:"stock"`
	Capacity capacity.Decision  `json:"capacity"`
}

func (r CheckResult) outcome() string {
	switch {
	case !r.Capacity.Fits:
		return "split"
	case !r.Stock.GloballySufficient:
		return "shortage"
	default:
		return "sufficient"
	}
}

// Check - проверка по снимку без блокировки.
func (s *Service) Check(ctx context.Context, in CheckInput) (CheckResult, error) {
	const op = "service.planning.Check"

	if !in.TargetQuantityKg.IsPositive() {
		return CheckResult{}, apperr.Validation("target_quantity_kg", "must be positive, got %s", in.TargetQuantityKg)
	}
	if in.PlannedDate.IsZero() {
		return CheckResult{}, apperr.Validation("planned_date", "planned date is required")
	}

	snap, err := s.engine.LoadSnapshot(ctx)
	if err != nil {
		return CheckResult{}, fmt.Errorf("%s: %w", op, err)
	}

	var existing *storage.ProductionOrder
	if in.ExcludeID != 0 {
		o, err := s.storage.GetOrder(ctx, in.ExcludeID)
		if err != nil {
			return CheckResult{}, fmt.Errorf("%s: get order %d: %w", op, in.ExcludeID, err)
		}
		existing = &o
	}

	res, _, err := s.evaluate(snap, in.RecipeID, in.TargetQuantityKg, in.PlannedDate, existing)
	if err != nil {
		return CheckResult{}, err
	}

	s.metrics.RecordPlanningCheck(res.outcome())
	return res, nil
}

// evaluate - общая часть проверки и повторной проверки при записи.
func (s *Service) evaluate(
	snap *reservation.Snapshot,
	recipeID int64,
	targetKg decimal.Decimal,
	plannedDate time.Time,
	existing *storage.ProductionOrder,
) (CheckResult, storage.Recipe, error) {
	recipe, err := snap.Recipe(recipeID)
	if err != nil {
		return CheckResult{}, storage.Recipe{}, err
	}
	// старая версия рецептуры допустима только для заказа, который уже на ней
	if !recipe.IsActive && (existing == nil || existing.RecipeID != recipeID) {
		return CheckResult{}, storage.Recipe{}, apperr.Validation("recipe_id", "recipe %d is not active", recipeID)
	}

	var excludeID int64
	if existing != nil {
		excludeID = existing.ID
	}

	report, err := snap.Check(recipe, targetKg, excludeID)
	if err != nil {
		return CheckResult{}, storage.Recipe{}, err
	}

	workload := capacity.BuildWorkload(snap.Orders, snap.Recipes, excludeID)
	decision, err := s.scheduler.Plan(recipe, targetKg, plannedDate, workload)
	if err != nil {
		return CheckResult{}, storage.Recipe{}, err
	}

	return CheckResult{Stock: report, Capacity: decision}, recipe, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (storage.ProductionOrder, error) {
	const op = "service.planning.GetOrder"

	o, err := s.storage.GetOrder(ctx, id)
	if err != nil {
		return storage.ProductionOrder{}, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, statuses ...storage.OrderStatus) ([]storage.ProductionOrder, error) {
	const op = "service.planning.ListOrders"

	orders, err := s.storage.ListOrdersByStatus(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}
