package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"prod-planner/http-server/response"
	"prod-planner/internal/storage"
)

type RecipeProvider interface {
	List(ctx context.Context, activeOnly bool) ([]storage.Recipe, error)
	Get(ctx context.Context, id int64) (storage.Recipe, error)
}

// GetRecipesAdmin - все версии рецептур, ?active=true оставляет только действующие.
func GetRecipesAdmin(log *slog.Logger, recipes RecipeProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.GetRecipesAdmin"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		list, err := recipes.List(ctx, r.URL.Query().Get("active") == "true")
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, list)
	}
}

func GetRecipeAdmin(log *slog.Logger, recipes RecipeProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.GetRecipeAdmin"

		id, err := response.IDParam(r, "id")
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		recipe, err := recipes.Get(ctx, id)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, recipe)
	}
}
