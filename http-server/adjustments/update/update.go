package update

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"prod-planner/http-server/response"
	"prod-planner/internal/storage"
)

type AdjustmentWorkflow interface {
	AssignContainer(ctx context.Context, id, containerID string) (storage.AdjustmentOrder, error)
	AutoDraw(ctx context.Context, id, productName string) (storage.AdjustmentOrder, error)
	ManualDraw(ctx context.Context, id, productName, palletID string, quantity decimal.Decimal) (storage.AdjustmentOrder, error)
	StartProcessing(ctx context.Context, id string) (storage.AdjustmentOrder, error)
	Complete(ctx context.Context, id string) (storage.AdjustmentOrder, error)
}

// autoDrawTimeout покрывает задержку станции. Обрыв запроса клиентом отменяет отбор.
const autoDrawTimeout = 30 * time.Second

type Resp struct {
	response.Response
	Adjustment storage.AdjustmentOrder `json:"adjustment"`
}

func respond(
	w http.ResponseWriter, r *http.Request, log *slog.Logger,
	op, message string, timeout time.Duration,
	act func(ctx context.Context, id string) (storage.AdjustmentOrder, error),
) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	a, err := act(ctx, chi.URLParam(r, "adjID"))
	if err != nil {
		response.Fail(w, r, log, op, err)
		return
	}

	log.Info(message, slog.String("id", a.ID), slog.String("status", string(a.Status)))
	render.JSON(w, r, Resp{Response: response.OK(message), Adjustment: a})
}

func AssignContainer(log *slog.Logger, wf AdjustmentWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.adjustments.AssignContainer"

		var req struct {
			ContainerID string `json:"container_id" validate:"required"`
		}
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		respond(w, r, log, op, "container assigned", 5*time.Second, func(ctx context.Context, id string) (storage.AdjustmentOrder, error) {
			return wf.AssignContainer(ctx, id, req.ContainerID)
		})
	}
}

func AutoDraw(log *slog.Logger, wf AdjustmentWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.adjustments.AutoDraw"

		var req struct {
			ProductName string `json:"product_name" validate:"required"`
		}
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		respond(w, r, log, op, "material drawn from station", autoDrawTimeout, func(ctx context.Context, id string) (storage.AdjustmentOrder, error) {
			return wf.AutoDraw(ctx, id, req.ProductName)
		})
	}
}

func ManualDraw(log *slog.Logger, wf AdjustmentWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.adjustments.ManualDraw"

		var req struct {
			ProductName string          `json:"product_name" validate:"required"`
			PalletID    string          `json:"pallet_id" validate:"required"`
			QuantityKg  decimal.Decimal `json:"quantity_kg"`
		}
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		respond(w, r, log, op, "material drawn from pallet", 5*time.Second, func(ctx context.Context, id string) (storage.AdjustmentOrder, error) {
			return wf.ManualDraw(ctx, id, req.ProductName, req.PalletID, req.QuantityKg)
		})
	}
}

func StartProcessing(log *slog.Logger, wf AdjustmentWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, log, "handlers.adjustments.StartProcessing", "processing started", 5*time.Second, wf.StartProcessing)
	}
}

func CompleteAdjustment(log *slog.Logger, wf AdjustmentWorkflow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, log, "handlers.adjustments.CompleteAdjustment", "adjustment completed", 5*time.Second, wf.Complete)
	}
}
