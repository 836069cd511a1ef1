package update

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"prod-planner/http-server/orders/save"
	"prod-planner/http-server/response"
	"prod-planner/internal/service/planning"
	"prod-planner/internal/storage"
)

type OrderUpdater interface {
	UpdateOrder(ctx context.Context, id int64, in planning.OrderInput, acceptShortages bool) (planning.CommitResult, error)
}

// UpdateOrder - правка запланированного заказа. Собственная резервация заказа не учитывается.
func UpdateOrder(log *slog.Logger, updater OrderUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.orders.UpdateOrder"

		id, err := response.IDParam(r, "id")
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		var req save.OrderRequest
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}
		in, err := req.Input()
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result, err := updater.UpdateOrder(ctx, id, in, req.AcceptShortages)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, save.Commit(result, "order updated"))
	}
}

type StatusChanger interface {
	PauseOrder(ctx context.Context, id int64) (storage.ProductionOrder, error)
	ResumeOrder(ctx context.Context, id int64) (storage.ProductionOrder, error)
}

type StatusResp struct {
	response.Response
	Order storage.ProductionOrder `json:"order"`
}

func PauseOrder(log *slog.Logger, changer StatusChanger) http.HandlerFunc {
	return changeStatus(log, "handlers.orders.PauseOrder", "order paused", changer.PauseOrder)
}

func ResumeOrder(log *slog.Logger, changer StatusChanger) http.HandlerFunc {
	return changeStatus(log, "handlers.orders.ResumeOrder", "order resumed", changer.ResumeOrder)
}

func changeStatus(
	log *slog.Logger,
	op, message string,
	change func(ctx context.Context, id int64) (storage.ProductionOrder, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := response.IDParam(r, "id")
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, err := change(ctx, id)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		log.Info(message, slog.Int64("order_id", id))
		render.JSON(w, r, StatusResp{Response: response.OK(message), Order: order})
	}
}
