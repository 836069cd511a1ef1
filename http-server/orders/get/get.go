package get

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"

	"prod-planner/http-server/response"
	"prod-planner/internal/service/planning"
	"prod-planner/internal/storage"
)

type OrderProvider interface {
	GetOrder(ctx context.Context, id int64) (storage.ProductionOrder, error)
	ListOrders(ctx context.Context, statuses ...storage.OrderStatus) ([]storage.ProductionOrder, error)
	Overview(ctx context.Context) (planning.Overview, error)
}

func GetOrder(log *slog.Logger, provider OrderProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.orders.GetOrder"

		id, err := response.IDParam(r, "id")
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, err := provider.GetOrder(ctx, id)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, order)
	}
}

// GetOrders - список заказов, ?status=planned,ongoing фильтрует по статусам.
func GetOrders(log *slog.Logger, provider OrderProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.orders.GetOrders"

		var statuses []storage.OrderStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			for _, s := range strings.Split(raw, ",") {
				statuses = append(statuses, storage.OrderStatus(strings.TrimSpace(s)))
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		orders, err := provider.ListOrders(ctx, statuses...)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, orders)
	}
}

// GetOverview - план по дням с загрузкой и нехватками.
func GetOverview(log *slog.Logger, provider OrderProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.orders.GetOverview"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		overview, err := provider.Overview(ctx)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, overview)
	}
}
