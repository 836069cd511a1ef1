package save

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"prod-planner/http-server/response"
	"prod-planner/internal/service/recipes"
	"prod-planner/internal/storage"
)

type RecipeCreator interface {
	Create(ctx context.Context, in recipes.Input) (storage.Recipe, error)
}

type Ingredient struct {
	ProductName string          `json:"product_name" validate:"required"`
	QuantityKg  decimal.Decimal `json:"quantity_kg"`
}

// RecipeRequest - тело создания и изменения рецептуры.
type RecipeRequest struct {
	Name                      string               `json:"name" validate:"required"`
	ProductionRateKgPerMinute decimal.Decimal      `json:"production_rate_kg_per_minute"`
	Ingredients               []Ingredient         `json:"ingredients" validate:"required,min=1,dive"`
	Packaging                 storage.PackagingBOM `json:"packaging"`
}

func (req RecipeRequest) Input() recipes.Input {
	ingredients := make([]storage.Ingredient, 0, len(req.Ingredients))
	for _, ing := range req.Ingredients {
		ingredients = append(ingredients, storage.Ingredient{ProductName: ing.ProductName, QuantityKg: ing.QuantityKg})
	}
	return recipes.Input{
		Name:                      req.Name,
		ProductionRateKgPerMinute: req.ProductionRateKgPerMinute,
		Ingredients:               ingredients,
		Packaging:                 req.Packaging,
	}
}

type Resp struct {
	response.Response
	Recipe storage.Recipe `json:"recipe"`
}

func SaveRecipeAdmin(log *slog.Logger, creator RecipeCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.SaveRecipeAdmin"

		var req RecipeRequest
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		recipe, err := creator.Create(ctx, req.Input())
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Resp{Response: response.OK("recipe created"), Recipe: recipe})
	}
}
