package memory

import (
	"context"
	"fmt"
	"sort"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

// ListOrdersByStatus без статусов возвращает все заказы.
func (s *Storage) ListOrdersByStatus(_ context.Context, statuses ...storage.OrderStatus) ([]storage.ProductionOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[storage.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	orders := make([]storage.ProductionOrder, 0, len(s.orders))
	for _, o := range s.orders {
		if len(want) > 0 && !want[o.Status] {
			continue
		}
		orders = append(orders, s.withEntries(cloneOrder(o)))
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].PlannedDate.Equal(orders[j].PlannedDate) {
			return orders[i].PlannedDate.Before(orders[j].PlannedDate)
		}
		return orders[i].ID < orders[j].ID
	})
	return orders, nil
}

func (s *Storage) GetOrder(_ context.Context, id int64) (storage.ProductionOrder, error) {
	const op = "storage.memory.GetOrder"

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return storage.ProductionOrder{}, fmt.Errorf("%s: order %d: %w", op, id, apperr.ErrNotFound)
	}
	return s.withEntries(cloneOrder(o)), nil
}

// NextOrderSeq выдаёт следующий номер для кода заказа данного вида.
func (s *Storage) NextOrderSeq(_ context.Context, kind storage.OrderKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codeSeq[kind]++
	return s.codeSeq[kind], nil
}

func (s *Storage) CreateOrder(_ context.Context, o storage.ProductionOrder) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orderSeq++
	o.ID = s.orderSeq
	now := s.now()
	o.CreatedAt, o.UpdatedAt = now, now
	for i := range o.Batches {
		o.Batches[i].OrderID = o.ID
	}
	s.orders[o.ID] = cloneOrder(o)
	return o.ID, nil
}

// UpdateOrder сохраняет заголовок и партии заказа.
func (s *Storage) UpdateOrder(_ context.Context, o storage.ProductionOrder) error {
	const op = "storage.memory.UpdateOrder"

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.orders[o.ID]
	if !ok {
		return fmt.Errorf("%s: order %d: %w", op, o.ID, apperr.ErrNotFound)
	}
	o.CreatedAt = old.CreatedAt
	o.UpdatedAt = s.now()
	for i := range o.Batches {
		o.Batches[i].OrderID = o.ID
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *Storage) SaveBatch(_ context.Context, b storage.Batch) error {
	const op = "storage.memory.SaveBatch"

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[b.OrderID]
	if !ok {
		return fmt.Errorf("%s: order %d: %w", op, b.OrderID, apperr.ErrNotFound)
	}
	stored := o.BatchByID(b.ID)
	if stored == nil {
		return fmt.Errorf("%s: batch %s: %w", op, b.ID, apperr.ErrNotFound)
	}
	*stored = cloneBatch(b)
	o.UpdatedAt = s.now()
	s.orders[o.ID] = o
	return nil
}

func (s *Storage) SetShortageFlags(_ context.Context, flags map[int64]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, flag := range flags {
		o, ok := s.orders[id]
		if !ok {
			continue
		}
		o.HasShortages = flag
		s.orders[id] = o
	}
	return nil
}

func (s *Storage) DeleteOrder(_ context.Context, id int64) error {
	const op = "storage.memory.DeleteOrder"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return fmt.Errorf("%s: order %d: %w", op, id, apperr.ErrNotFound)
	}
	delete(s.orders, id)
	return nil
}

// withEntries раскладывает журналы списаний и выпуска по партиям.
// Вызывается под блокировкой.
func (s *Storage) withEntries(o storage.ProductionOrder) storage.ProductionOrder {
	for _, c := range s.consumption {
		if c.OrderID != o.ID || c.BatchID == nil {
			continue
		}
		if b := o.BatchByID(*c.BatchID); b != nil {
			b.ConsumedMaterials = append(b.ConsumedMaterials, c)
		}
	}
	for _, g := range s.produced {
		for i := range o.Batches {
			if o.Batches[i].ID == g.BatchID {
				o.Batches[i].ProducedGoods = append(o.Batches[i].ProducedGoods, g)
			}
		}
	}
	return o
}
