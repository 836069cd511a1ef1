package memory

import (
	"context"
	"fmt"
	"sort"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

func (s *Storage) ListRecipes(_ context.Context) ([]storage.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipes := make([]storage.Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		recipes = append(recipes, cloneRecipe(r))
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID < recipes[j].ID })
	return recipes, nil
}

func (s *Storage) GetRecipe(_ context.Context, id int64) (storage.Recipe, error) {
	const op = "storage.memory.GetRecipe"

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		return storage.Recipe{}, fmt.Errorf("%s: recipe %d: %w", op, id, apperr.ErrNotFound)
	}
	return cloneRecipe(r), nil
}

func (s *Storage) CreateRecipe(_ context.Context, r storage.Recipe) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recipeSeq++
	r.ID = s.recipeSeq
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.recipes[r.ID] = cloneRecipe(r)
	return r.ID, nil
}

func (s *Storage) UpdateRecipe(_ context.Context, r storage.Recipe) error {
	const op = "storage.memory.UpdateRecipe"

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.recipes[r.ID]
	if !ok {
		return fmt.Errorf("%s: recipe %d: %w", op, r.ID, apperr.ErrNotFound)
	}
	r.CreatedAt = old.CreatedAt
	s.recipes[r.ID] = cloneRecipe(r)
	return nil
}

func (s *Storage) DeactivateRecipe(_ context.Context, id int64) error {
	const op = "storage.memory.DeactivateRecipe"

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recipes[id]
	if !ok {
		return fmt.Errorf("%s: recipe %d: %w", op, id, apperr.ErrNotFound)
	}
	r.IsActive = false
	s.recipes[id] = r
	return nil
}

// RecipeInUse - есть ли незавершённые заказы на этой версии рецептуры.
func (s *Storage) RecipeInUse(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.RecipeID == id && o.Status != storage.OrderCompleted {
			return true, nil
		}
	}
	return false, nil
}
