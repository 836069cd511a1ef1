package remove

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"prod-planner/http-server/response"
)

type OrderDeleter interface {
	DeleteOrder(ctx context.Context, id int64) error
}

// DeleteOrder удаляет заказ, пока он в статусе planned, и освобождает его резервацию.
func DeleteOrder(log *slog.Logger, deleter OrderDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.orders.DeleteOrder"

		id, err := response.IDParam(r, "id")
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := deleter.DeleteOrder(ctx, id); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, response.OK("order deleted"))
	}
}
