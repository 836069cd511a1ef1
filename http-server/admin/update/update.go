package update

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"prod-planner/http-server/admin/save"
	"prod-planner/http-server/response"
	"prod-planner/internal/service/recipes"
	"prod-planner/internal/storage"
)

type RecipeUpdater interface {
	Update(ctx context.Context, id int64, in recipes.Input) (storage.Recipe, bool, error)
	Deactivate(ctx context.Context, id int64) error
}

type Resp struct {
	response.Response
	Recipe    storage.Recipe `json:"recipe"`
	Versioned bool           `json:"versioned"`
}

// UpdateRecipeAdmin правит рецептуру. Если она уже используется заказами,
// создаётся новая версия, а заказы остаются на старой.
func UpdateRecipeAdmin(log *slog.Logger, updater RecipeUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.UpdateRecipeAdmin"

		id, err := response.IDParam(r, "id")
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		var req save.RecipeRequest
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		recipe, versioned, err := updater.Update(ctx, id, req.Input())
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		message := "recipe updated"
		if versioned {
			message = "recipe is in use, new version created"
		}
		render.JSON(w, r, Resp{Response: response.OK(message), Recipe: recipe, Versioned: versioned})
	}
}

func DeactivateRecipeAdmin(log *slog.Logger, updater RecipeUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.DeactivateRecipeAdmin"

		id, err := response.IDParam(r, "id")
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := updater.Deactivate(ctx, id); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, response.OK("recipe deactivated"))
	}
}
