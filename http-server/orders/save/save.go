package save

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"prod-planner/http-server/response"
	"prod-planner/internal/service/capacity"
	"prod-planner/internal/service/planning"
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, in planning.OrderInput, acceptShortages bool) (planning.CommitResult, error)
	ConfirmSplit(ctx context.Context, in planning.OrderInput, parts []capacity.Part, acceptShortages bool) (planning.CommitResult, error)
}

func CreateOrder(log *slog.Logger, creator OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.orders.CreateOrder"

		var req OrderRequest
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

		result, err := creator.CreateOrder(ctx, in, req.AcceptShortages)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		if result.Committed {
			render.Status(r, http.StatusCreated)
		}
		render.JSON(w, r, Commit(result, "order created"))
	}
}

type SplitPart struct {
	Date        string          `json:"date" validate:"required"`
	BatchSizeKg decimal.Decimal `json:"batch_size_kg"`
}

type SplitRequest struct {
	OrderRequest
	Parts []SplitPart `json:"parts" validate:"required,min=1,dive"`
}

// ConfirmSplit создаёт заказы по предложению разбиения, которое видел планировщик.
func ConfirmSplit(log *slog.Logger, creator OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.orders.ConfirmSplit"

		var req SplitRequest
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}
		in, err := req.Input()
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		parts := make([]capacity.Part, 0, len(req.Parts))
		for _, p := range req.Parts {
			date, err := response.ParseDate("parts.date", p.Date)
			if err != nil {
				response.Fail(w, r, log, op, err)
				return
			}
			parts = append(parts, capacity.Part{Date: date, BatchSizeKg: p.BatchSizeKg})
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		result, err := creator.ConfirmSplit(ctx, in, parts, req.AcceptShortages)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		if result.Committed {
			render.Status(r, http.StatusCreated)
		}
		render.JSON(w, r, Commit(result, "split confirmed"))
	}
}
