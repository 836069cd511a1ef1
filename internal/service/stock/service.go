package stock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"prod-planner/internal/apperr"
	"prod-planner/internal/service/coordinator"
	"prod-planner/internal/service/requirements"
	"prod-planner/internal/service/stockledger"
	"prod-planner/internal/storage"
)

type Storage interface {
	ListStockUnits(ctx context.Context) ([]storage.StockUnit, error)
	PutStockUnit(ctx context.Context, u storage.StockUnit) error
}

// ShortageRefresher пересчитывает флаги нехватки после изменения склада.
type ShortageRefresher interface {
	RefreshShortageFlags(ctx context.Context) (int, error)
}

// Service - чтение склада через StockLedger и приём остатков от внешней системы.
type Service struct {
	log       *slog.Logger
	storage   Storage
	refresher ShortageRefresher
	coord     *coordinator.Coordinator
	now       func() time.Time
}

func New(log *slog.Logger, st Storage, refresher ShortageRefresher, coord *coordinator.Coordinator) *Service {
	return &Service{log: log, storage: st, refresher: refresher, coord: coord, now: time.Now}
}

type Line struct {
	ProductName string          `json:"product_name"`
	Unit        storage.Unit    `json:"unit"`
	Available   decimal.Decimal `json:"available"`
}

func (s *Service) ledger(ctx context.Context) (*stockledger.Ledger, error) {
	units, err := s.storage.ListStockUnits(ctx)
	if err != nil {
		return nil, err
	}
	return stockledger.New(units, s.now()), nil
}

// Available - незаблокированный запас по материалам, вес и штуки раздельно.
func (s *Service) Available(ctx context.Context) ([]Line, error) {
	const op = "service.stock.Available"

	l, err := s.ledger(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	totals := l.UnblockedStock()
	lines := make([]Line, 0, len(totals))
	for _, key := range requirements.SortedKeys(totals) {
		lines = append(lines, Line{ProductName: key.ProductName, Unit: key.Unit, Available: totals[key]})
	}
	return lines, nil
}

// FEFO - единицы материала в порядке отбора.
func (s *Service) FEFO(ctx context.Context, productName string) ([]storage.StockUnit, error) {
	const op = "service.stock.FEFO"

	if productName == "" {
		return nil, apperr.Validation("product_name", "product name is required")
	}

	l, err := s.ledger(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return l.UnblockedUnitsSortedByExpiry(productName), nil
}

// PutUnit - синхронизация паллеты из внешней складской системы.
func (s *Service) PutUnit(ctx context.Context, u storage.StockUnit) error {
	const op = "service.stock.PutUnit"

	if u.ID == "" {
		return apperr.Validation("id", "stock unit id is required")
	}
	if u.ProductName == "" {
		return apperr.Validation("product_name", "product name is required")
	}
	if u.Quantity.IsNegative() {
		return apperr.Validation("current_quantity", "must not be negative")
	}
	if u.Unit != "" && u.Unit != storage.UnitKg && u.Unit != storage.UnitPcs {
		return apperr.Validation("unit", "unknown unit %q", u.Unit)
	}

	err := s.coord.Do(ctx, func(ctx context.Context) error {
		return s.storage.PutStockUnit(ctx, u)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("stock unit synced", slog.String("id", u.ID), slog.String("product", u.ProductName), slog.String("quantity", u.Quantity.String()))

	if s.refresher != nil {
		if _, err := s.refresher.RefreshShortageFlags(ctx); err != nil {
			s.log.Error("failed to refresh shortage flags", slog.String("error", err.Error()))
		}
	}
	return nil
}
