package memory

import (
	"context"
	"fmt"
	"sort"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

func (s *Storage) GetAdjustmentOrder(_ context.Context, id string) (storage.AdjustmentOrder, error) {
	const op = "storage.memory.GetAdjustmentOrder"

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.adjustments[id]
	if !ok {
		return storage.AdjustmentOrder{}, fmt.Errorf("%s: adjustment %s: %w", op, id, apperr.ErrNotFound)
	}
	return cloneAdjustment(a), nil
}

// ListAdjustmentOrders с productionOrderID == 0 возвращает все корректировки.
func (s *Storage) ListAdjustmentOrders(_ context.Context, productionOrderID int64) ([]storage.AdjustmentOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]storage.AdjustmentOrder, 0)
	for _, a := range s.adjustments {
		if productionOrderID != 0 && a.ProductionOrderID != productionOrderID {
			continue
		}
		list = append(list, cloneAdjustment(a))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (s *Storage) ActiveAdjustmentForBatch(_ context.Context, batchID string) (storage.AdjustmentOrder, error) {
	const op = "storage.memory.ActiveAdjustmentForBatch"

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.adjustments {
		if a.BatchID != nil && *a.BatchID == batchID && a.Status != storage.AdjustmentCompleted {
			return cloneAdjustment(a), nil
		}
	}
	return storage.AdjustmentOrder{}, fmt.Errorf("%s: batch %s: %w", op, batchID, apperr.ErrNotFound)
}

func (s *Storage) SaveAdjustmentOrder(_ context.Context, a storage.AdjustmentOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adjustments[a.ID] = cloneAdjustment(a)
	return nil
}
