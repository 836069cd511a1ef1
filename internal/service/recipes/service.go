package recipes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"prod-planner/internal/apperr"
	"prod-planner/internal/service/coordinator"
	"prod-planner/internal/storage"
)

type Storage interface {
	ListRecipes(ctx context.Context) ([]storage.Recipe, error)
	GetRecipe(ctx context.Context, id int64) (storage.Recipe, error)
	CreateRecipe(ctx context.Context, r storage.Recipe) (int64, error)
	UpdateRecipe(ctx context.Context, r storage.Recipe) error
	DeactivateRecipe(ctx context.Context, id int64) error
	RecipeInUse(ctx context.Context, id int64) (bool, error)
}

type Service struct {
	log     *slog.Logger
	storage Storage
	coord   *coordinator.Coordinator
}

func New(log *slog.Logger, st Storage, coord *coordinator.Coordinator) *Service {
	return &Service{log: log, storage: st, coord: coord}
}

type Input struct {
	Name                      string
	ProductionRateKgPerMinute decimal.Decimal
	Ingredients               []storage.Ingredient
	Packaging                 storage.PackagingBOM
}

func (in Input) validate() error {
	if in.Name == "" {
		return apperr.Validation("name", "recipe name is required")
	}
	if !in.ProductionRateKgPerMinute.IsPositive() {
		return apperr.Validation("production_rate_kg_per_minute", "must be positive")
	}
	if len(in.Ingredients) == 0 {
		return apperr.Validation("ingredients", "at least one ingredient is required")
	}

	seen := make(map[string]bool, len(in.Ingredients))
	for _, ing := range in.Ingredients {
		if ing.ProductName == "" {
			return apperr.Validation("ingredients", "ingredient name is required")
		}
		if seen[ing.ProductName] {
			return apperr.Validation("ingredients", "ingredient %s is listed twice", ing.ProductName)
		}
		seen[ing.ProductName] = true
		if !ing.QuantityKg.IsPositive() {
			return apperr.Validation("ingredients", "quantity of %s must be positive", ing.ProductName)
		}
	}

	p := in.Packaging
	if p.Bag != "" && !p.BagCapacityKg.IsPositive() {
		return apperr.Validation("packaging.bag_capacity_kg", "must be positive when a bag is set")
	}
	if p.FoilRoll != "" && p.Bag == "" {
		return apperr.Validation("packaging.foil_roll", "foil is counted per bag, set a bag first")
	}
	if p.FoilWeightPerBagKg.IsNegative() {
		return apperr.Validation("packaging.foil_weight_per_bag_kg", "must not be negative")
	}
	return nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]storage.Recipe, error) {
	const op = "service.recipes.List"

	all, err := s.storage.ListRecipes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !activeOnly {
		return all, nil
	}

	active := make([]storage.Recipe, 0, len(all))
	for _, r := range all {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *Service) Get(ctx context.Context, id int64) (storage.Recipe, error) {
	const op = "service.recipes.Get"

	r, err := s.storage.GetRecipe(ctx, id)
	if err != nil {
		return storage.Recipe{}, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

func (s *Service) Create(ctx context.Context, in Input) (storage.Recipe, error) {
	const op = "service.recipes.Create"

	if err := in.validate(); err != nil {
		return storage.Recipe{}, err
	}

	r := storage.Recipe{
		Name:                      in.Name,
		ProductionRateKgPerMinute: in.ProductionRateKgPerMinute,
		Ingredients:               in.Ingredients,
		Packaging:                 in.Packaging,
		IsActive:                  true,
	}
	err := s.coord.Do(ctx, func(ctx context.Context) error {
		id, err := s.storage.CreateRecipe(ctx, r)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		r.ID = id
		return nil
	})
	if err != nil {
		return storage.Recipe{}, err
	}

	s.log.Info("recipe created", slog.Int64("id", r.ID), slog.String("name", r.Name))
	return r, nil
}

// Update правит рецептуру. Если на ней есть незавершённые заказы, создаётся
// новая версия, а старая деактивируется: заказы продолжают ссылаться на старую.
func (s *Service) Update(ctx context.Context, id int64, in Input) (storage.Recipe, bool, error) {
	const op = "service.recipes.Update"

	if err := in.validate(); err != nil {
		return storage.Recipe{}, false, err
	}

	var (
		out       storage.Recipe
		versioned bool
	)
	err := s.coord.Do(ctx, func(ctx context.Context) error {
		old, err := s.storage.GetRecipe(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: get %d: %w", op, id, err)
		}
		if !old.IsActive {
			return apperr.Validation("id", "recipe %d is an old version, edit the active one", id)
		}

		inUse, err := s.storage.RecipeInUse(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: usage of %d: %w", op, id, err)
		}

		out = old
		out.Name = in.Name
		out.ProductionRateKgPerMinute = in.ProductionRateKgPerMinute
		out.Ingredients = in.Ingredients
		out.Packaging = in.Packaging

		if !inUse {
			if err := s.storage.UpdateRecipe(ctx, out); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			return nil
		}

		prev := old.ID
		out.PreviousVersionID = &prev
		out.IsActive = true
		newID, err := s.storage.CreateRecipe(ctx, out)
		if err != nil {
			return fmt.Errorf("%s: new version: %w", op, err)
		}
		if err := s.storage.DeactivateRecipe(ctx, old.ID); err != nil {
			return fmt.Errorf("%s: deactivate %d: %w", op, old.ID, err)
		}
		out.ID = newID
		versioned = true
		return nil
	})
	if err != nil {
		return storage.Recipe{}, false, err
	}

	s.log.Info("recipe updated", slog.Int64("id", out.ID), slog.Bool("new_version", versioned))
	return out, versioned, nil
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	const op = "service.recipes.Deactivate"

	err := s.coord.Do(ctx, func(ctx context.Context) error {
		if err := s.storage.DeactivateRecipe(ctx, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("recipe deactivated", slog.Int64("id", id))
	return nil
}
