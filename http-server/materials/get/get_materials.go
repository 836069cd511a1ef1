package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"prod-planner/http-server/response"
	"prod-planner/internal/service/stock"
	"prod-planner/internal/storage"
)

type MaterialProvider interface {
	Available(ctx context.Context) ([]stock.Line, error)
	FEFO(ctx context.Context, productName string) ([]storage.StockUnit, error)
}

// GetMaterials - доступный незаблокированный запас по материалам.
func GetMaterials(log *slog.Logger, material MaterialProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.materials.GetMaterials"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		lines, err := material.Available(ctx)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, lines)
	}
}

// GetPickList - паллеты материала в порядке FEFO, ?product=Mąka.
func GetPickList(log *slog.Logger, material MaterialProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.materials.GetPickList"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		units, err := material.FEFO(ctx, r.URL.Query().Get("product"))
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, units)
	}
}
