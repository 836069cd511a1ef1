package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"prod-planner/internal/apperr"
	"prod-planner/internal/service/requirements"
	"prod-planner/internal/service/stockledger"
	"prod-planner/internal/storage"
)

type Storage interface {
	ListRecipes(ctx context.Context) ([]storage.Recipe, error)
	ListOrdersByStatus(ctx context.Context, statuses ...storage.OrderStatus) ([]storage.ProductionOrder, error)
	ListStockUnits(ctx context.Context) ([]storage.StockUnit, error)
}

// StockView - то, что движку нужно от складского снимка.
type StockView interface {
	Available(productName string, unit storage.Unit) decimal.Decimal
}

type Engine struct {
	storage Storage
	now     func() time.Time
}

func NewEngine(storage Storage, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{storage: storage, now: now}
}

// Snapshot - согласованный на чтение срез: склад, активные заказы, все версии рецептур.
type Snapshot struct {
	Ledger  *stockledger.Ledger
	Orders  []storage.ProductionOrder
	Recipes map[int64]storage.Recipe
	TakenAt time.Time
}

// LoadSnapshot читает всё параллельно. Мутаций нет.
func (e *Engine) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	const op = "service.reservation.LoadSnapshot"

	var (
		recipes []storage.Recipe
		orders  []storage.ProductionOrder
		units   []storage.StockUnit
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recipes, err = e.storage.ListRecipes(gCtx)
		if err != nil {
			return fmt.Errorf("recipes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		orders, err = e.storage.ListOrdersByStatus(gCtx, storage.OrderPlanned, storage.OrderOngoing, storage.OrderPaused)
		if err != nil {
			return fmt.Errorf("orders: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		units, err = e.storage.ListStockUnits(gCtx)
		if err != nil {
			return fmt.Errorf("stock: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	taken := e.now()
	byID := make(map[int64]storage.Recipe, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
	}

	return &Snapshot{
		Ledger:  stockledger.New(units, taken),
		Orders:  orders,
		Recipes: byID,
		TakenAt: taken,
	}, nil
}

func (s *Snapshot) Recipe(id int64) (storage.Recipe, error) {
	r, ok := s.Recipes[id]
	if !ok {
		return storage.Recipe{}, apperr.Validation("recipe_id", "recipe %d not found", id)
	}
	return r, nil
}

// Check - проверка кандидата против снимка; excludeID исключает редактируемый заказ.
func (s *Snapshot) Check(recipe storage.Recipe, targetKg decimal.Decimal, excludeID int64) (Report, error) {
	required, err := requirements.Calculate(recipe, targetKg)
	if err != nil {
		return Report{}, err
	}

	reserved := Reserve(s.Orders, s.Recipes, excludeID)

	return Evaluate(required, s.Ledger, reserved), nil
}

// Reservations - суммарная потребность чужих запланированных заказов.
type Reservations struct {
	ByKey   map[requirements.Key]decimal.Decimal
	Skipped []int64
}

// Reserve учитывает только заказы в статусе planned, кроме excludeID.
// Заказ, для которого потребность не считается, пропускается и попадает в Skipped.
func Reserve(orders []storage.ProductionOrder, recipes map[int64]storage.Recipe, excludeID int64) Reservations {
	out := Reservations{ByKey: make(map[requirements.Key]decimal.Decimal)}

	for _, o := range orders {
		if o.Status != storage.OrderPlanned || (excludeID != 0 && o.ID == excludeID) {
			continue
		}
		recipe, ok := recipes[o.RecipeID]
		if !ok {
			out.Skipped = append(out.Skipped, o.ID)
			continue
		}
		req, err := requirements.Calculate(recipe, o.TargetQuantityKg)
		if err != nil {
			out.Skipped = append(out.Skipped, o.ID)
			continue
		}
		for _, m := range req.Materials {
			out.ByKey[m.Key()] = out.ByKey[m.Key()].Add(m.Quantity)
		}
	}

	return out
}

// Add добавляет потребность, например уже принятых частей разбиения.
func (r *Reservations) Add(req requirements.Requirements) {
	if r.ByKey == nil {
		r.ByKey = make(map[requirements.Key]decimal.Decimal)
	}
	for _, m := range req.Materials {
		r.ByKey[m.Key()] = r.ByKey[m.Key()].Add(m.Quantity)
	}
}

type MaterialStatus struct {
	ProductName  string                    `json:"product_name"`
	Unit         storage.Unit              `json:"unit"`
	Kind         requirements.MaterialKind `json:"kind"`
	Required     decimal.Decimal           `json:"required"`
	Physical     decimal.Decimal           `json:"physical"`
	Reserved     decimal.Decimal           `json:"reserved"`
	Available    decimal.Decimal           `json:"available"`
	IsSufficient bool                      `json:"is_sufficient"`
}

type Shortage struct {
	ProductName string          `json:"name"`
	Unit        storage.Unit    `json:"unit"`
	Required    decimal.Decimal `json:"required"`
	Available   decimal.Decimal `json:"available"`
	Missing     decimal.Decimal `json:"missing"`
}

type Report struct {
	Materials          []MaterialStatus `json:"materials"`
	GloballySufficient bool             `json:"globally_sufficient"`
	Shortages          []Shortage       `json:"shortages"`
	SkippedOrders      []int64          `json:"skipped_orders,omitempty"`
}

// Evaluate - чистая функция: available = physical - reserved, достаточно если available >= required.
func Evaluate(required requirements.Requirements, stock StockView, reserved Reservations) Report {
	report := Report{
		Materials:          make([]MaterialStatus, 0, len(required.Materials)),
		GloballySufficient: true,
		Shortages:          []Shortage{},
		SkippedOrders:      reserved.Skipped,
	}

	for _, m := range required.Materials {
		physical := stock.Available(m.ProductName, m.Unit)
		res := reserved.ByKey[m.Key()]
		available := physical.Sub(res)
		sufficient := available.GreaterThanOrEqual(m.Quantity)

		report.Materials = append(report.Materials, MaterialStatus{
			ProductName:  m.ProductName,
			Unit:         m.Unit,
			Kind:         m.Kind,
			Required:     m.Quantity,
			Physical:     physical,
			Reserved:     res,
			Available:    available,
			IsSufficient: sufficient,
		})

		if sufficient {
			continue
		}

		report.GloballySufficient = false
		clamped := decimal.Max(decimal.Zero, available)
		report.Shortages = append(report.Shortages, Shortage{
			ProductName: m.ProductName,
			Unit:        m.Unit,
			Required:    m.Quantity,
			Available:   clamped,
			Missing:     m.Quantity.Sub(clamped),
		})
	}

	return report
}
