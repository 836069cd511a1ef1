package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

// RecordDraw списывает вес с паллеты (для станции остаток не ведётся)
// и дописывает событие в журнал. Либо всё, либо ничего.
func (s *Storage) RecordDraw(_ context.Context, d storage.Draw) (storage.ConsumedMaterial, error) {
	const op = "storage.memory.RecordDraw"

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.recordDrawLocked(d)
	if err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}
	return entry, nil
}

// RecordAdjustmentDraw - списание по корректировке вместе с новым набранным весом.
func (s *Storage) RecordAdjustmentDraw(ctx context.Context, d storage.Draw, a storage.AdjustmentOrder) (storage.ConsumedMaterial, error) {
	const op = "storage.memory.RecordAdjustmentDraw"

	if err := ctx.Err(); err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.adjustments[a.ID]
	if !ok || current.Status != storage.AdjustmentMaterialPicking {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: adjustment order %s in picking: %w", op, a.ID, apperr.ErrNotFound)
	}

	entry, err := s.recordDrawLocked(d)
	if err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}

	current.Materials = a.Materials
	current.UpdatedAt = a.UpdatedAt
	s.adjustments[a.ID] = cloneAdjustment(current)
	return entry, nil
}

// recordDrawLocked сначала проверяет всё и только потом меняет состояние.
func (s *Storage) recordDrawLocked(d storage.Draw) (storage.ConsumedMaterial, error) {
	if !d.Quantity.IsPositive() {
		return storage.ConsumedMaterial{}, apperr.Validation("quantity", "quantity must be positive")
	}
	if d.Unit == "" {
		d.Unit = storage.UnitKg
	}

	if _, ok := s.orders[d.OrderID]; !ok {
		return storage.ConsumedMaterial{}, fmt.Errorf("order %d: %w", d.OrderID, apperr.ErrNotFound)
	}

	if d.PalletID != "" {
		u, ok := s.units[d.PalletID]
		if !ok {
			return storage.ConsumedMaterial{}, fmt.Errorf("pallet %s: %w", d.PalletID, apperr.ErrNotFound)
		}
		if u.ProductName != d.ProductName {
			return storage.ConsumedMaterial{}, fmt.Errorf("pallet %s holds %s", d.PalletID, u.ProductName)
		}
		if u.IsBlocked {
			return storage.ConsumedMaterial{}, fmt.Errorf("pallet %s is blocked: %s", d.PalletID, u.BlockReason)
		}
		if u.Quantity.LessThan(d.Quantity) {
			return storage.ConsumedMaterial{}, fmt.Errorf("pallet %s has %s: %w", d.PalletID, u.Quantity, storage.ErrInsufficientQuantity)
		}
		u.Quantity = u.Quantity.Sub(d.Quantity)
		s.units[u.ID] = u
	}

	entry := storage.ConsumedMaterial{
		ID:           uuid.NewString(),
		OrderID:      d.OrderID,
		BatchID:      d.BatchID,
		ProductName:  d.ProductName,
		QuantityKg:   d.Quantity,
		Unit:         d.Unit,
		SourceID:     d.SourceID(),
		IsAdjustment: d.IsAdjustment,
		RecordedAt:   s.now(),
	}
	s.consumption = append(s.consumption, entry)
	return entry, nil
}

// ListConsumption - журнал списаний заказа в порядке поступления.
func (s *Storage) ListConsumption(_ context.Context, orderID int64) ([]storage.ConsumedMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]storage.ConsumedMaterial, 0)
	for _, c := range s.consumption {
		if c.OrderID == orderID {
			list = append(list, c)
		}
	}
	return list, nil
}

// AnnulConsumption помечает списание аннулированным и возвращает вес на паллету.
func (s *Storage) AnnulConsumption(_ context.Context, id string) (storage.ConsumedMaterial, error) {
	const op = "storage.memory.AnnulConsumption"

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.consumption {
		c := &s.consumption[i]
		if c.ID != id {
			continue
		}
		if c.IsAnnulled {
			return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, apperr.Validation("id", "entry %s is already annulled", id))
		}
		c.IsAnnulled = true
		if u, ok := s.units[c.SourceID]; ok {
			u.Quantity = u.Quantity.Add(c.QuantityKg)
			s.units[u.ID] = u
		}
		return *c, nil
	}
	return storage.ConsumedMaterial{}, fmt.Errorf("%s: entry %s: %w", op, id, apperr.ErrNotFound)
}

func (s *Storage) AddProducedGood(_ context.Context, g storage.ProducedGood) (storage.ProducedGood, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.RecordedAt.IsZero() {
		g.RecordedAt = s.now()
	}
	s.produced = append(s.produced, g)
	return g, nil
}

func (s *Storage) AnnulProducedGood(_ context.Context, id string) (storage.ProducedGood, error) {
	const op = "storage.memory.AnnulProducedGood"

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.produced {
		g := &s.produced[i]
		if g.ID != id {
			continue
		}
		if g.IsAnnulled {
			return storage.ProducedGood{}, fmt.Errorf("%s: %w", op, apperr.Validation("id", "entry %s is already annulled", id))
		}
		g.IsAnnulled = true
		return *g, nil
	}
	return storage.ProducedGood{}, fmt.Errorf("%s: entry %s: %w", op, id, apperr.ErrNotFound)
}
