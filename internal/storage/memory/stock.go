package memory

import (
	"context"
	"fmt"
	"sort"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

func (s *Storage) ListStockUnits(_ context.Context) ([]storage.StockUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	units := make([]storage.StockUnit, 0, len(s.units))
	for _, u := range s.units {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units, nil
}

func (s *Storage) GetStockUnit(_ context.Context, id string) (storage.StockUnit, error) {
	const op = "storage.memory.GetStockUnit"

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.units[id]
	if !ok {
		return storage.StockUnit{}, fmt.Errorf("%s: unit %s: %w", op, id, apperr.ErrNotFound)
	}
	return u, nil
}

// PutStockUnit - приёмка или корректировка паллеты внешней системой.
func (s *Storage) PutStockUnit(_ context.Context, u storage.StockUnit) error {
	const op = "storage.memory.PutStockUnit"

	if u.ID == "" {
		return fmt.Errorf("%s: %w", op, apperr.Validation("id", "stock unit id is required"))
	}
	if u.Unit == "" {
		u.Unit = storage.UnitKg
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.units[u.ID] = u
	return nil
}
