package get

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"prod-planner/http-server/response"
	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

type AdjustmentProvider interface {
	Get(ctx context.Context, id string) (storage.AdjustmentOrder, error)
	ListForOrder(ctx context.Context, productionOrderID int64) ([]storage.AdjustmentOrder, error)
}

func GetAdjustment(log *slog.Logger, provider AdjustmentProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.adjustments.GetAdjustment"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		a, err := provider.Get(ctx, chi.URLParam(r, "adjID"))
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, a)
	}
}

// GetAdjustments - ?order_id=N ограничивает список одним заказом.
func GetAdjustments(log *slog.Logger, provider AdjustmentProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.adjustments.GetAdjustments"

		var orderID int64
		if raw := r.URL.Query().Get("order_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				response.Fail(w, r, log, op, apperr.Validation("order_id", "invalid id %q", raw))
				return
			}
			orderID = id
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		list, err := provider.ListForOrder(ctx, orderID)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, list)
	}
}
