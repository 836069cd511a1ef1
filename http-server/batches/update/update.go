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

// BatchExecutor - действия оператора и лаборатории над партией.
type BatchExecutor interface {
	StartBatch(ctx context.Context, orderID int64, batchID string) (storage.Batch, error)
	FinishWeighing(ctx context.Context, orderID int64, batchID, productName string) (storage.Batch, error)
	RecordConsumption(ctx context.Context, orderID int64, batchID, productName, palletID string, quantity decimal.Decimal) (storage.ConsumedMaterial, error)
	SetNirs(ctx context.Context, orderID int64, batchID string, to storage.NirsStatus, correction bool) (storage.Batch, error)
	SetSampling(ctx context.Context, orderID int64, batchID string, to storage.SamplingStatus) (storage.Batch, error)
	CompleteBatch(ctx context.Context, orderID int64, batchID string) (storage.Batch, error)
	RegisterProduction(ctx context.Context, orderID int64, batchID string, weight decimal.Decimal) (storage.ProducedGood, error)
	AnnulConsumption(ctx context.Context, entryID string) (storage.ConsumedMaterial, error)
	AnnulProduction(ctx context.Context, entryID string) (storage.ProducedGood, error)
}

type BatchResp struct {
	response.Response
	Batch storage.Batch `json:"batch"`
}

type ConsumptionResp struct {
	response.Response
	Entry storage.ConsumedMaterial `json:"entry"`
}

type ProductionResp struct {
	response.Response
	Entry storage.ProducedGood `json:"entry"`
}

// batchHandler разбирает {id} и {batchID} и отвечает партией.
func batchHandler(
	log *slog.Logger,
	op, message string,
	decode func(r *http.Request) error,
	act func(ctx context.Context, orderID int64, batchID string) (storage.Batch, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := response.IDParam(r, "id")
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}
		batchID := chi.URLParam(r, "batchID")

		if decode != nil {
			if err := decode(r); err != nil {
				response.Fail(w, r, log, op, err)
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		b, err := act(ctx, orderID, batchID)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, BatchResp{Response: response.OK(message), Batch: b})
	}
}

func StartBatch(log *slog.Logger, ex BatchExecutor) http.HandlerFunc {
	return batchHandler(log, "handlers.batches.StartBatch", "batch started", nil, ex.StartBatch)
}

func CompleteBatch(log *slog.Logger, ex BatchExecutor) http.HandlerFunc {
	return batchHandler(log, "handlers.batches.CompleteBatch", "batch completed", nil, ex.CompleteBatch)
}

func FinishWeighing(log *slog.Logger, ex BatchExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProductName string `json:"product_name" validate:"required"`
		}
		batchHandler(log, "handlers.batches.FinishWeighing", "weighing finished",
			func(r *http.Request) error { return response.Decode(r, &req) },
			func(ctx context.Context, orderID int64, batchID string) (storage.Batch, error) {
				return ex.FinishWeighing(ctx, orderID, batchID, req.ProductName)
			},
		)(w, r)
	}
}

func SetNirs(log *slog.Logger, ex BatchExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status string `json:"status" validate:"required,oneof=pending ok nok"`
			// Correction - nok внесён по ошибке, снимается без корректировки
			Correction bool `json:"correction"`
		}
		batchHandler(log, "handlers.batches.SetNirs", "nirs status changed",
			func(r *http.Request) error { return response.Decode(r, &req) },
			func(ctx context.Context, orderID int64, batchID string) (storage.Batch, error) {
				return ex.SetNirs(ctx, orderID, batchID, storage.NirsStatus(req.Status), req.Correction)
			},
		)(w, r)
	}
}

func SetSampling(log *slog.Logger, ex BatchExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status string `json:"status" validate:"required,oneof=pending ok"`
		}
		batchHandler(log, "handlers.batches.SetSampling", "sampling status changed",
			func(r *http.Request) error { return response.Decode(r, &req) },
			func(ctx context.Context, orderID int64, batchID string) (storage.Batch, error) {
				return ex.SetSampling(ctx, orderID, batchID, storage.SamplingStatus(req.Status))
			},
		)(w, r)
	}
}

// RecordConsumption - списание сырья с отсканированной паллеты на партию.
func RecordConsumption(log *slog.Logger, ex BatchExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.batches.RecordConsumption"

		orderID, err := response.IDParam(r, "id")
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		var req struct {
			ProductName string          `json:"product_name" validate:"required"`
			PalletID    string          `json:"pallet_id" validate:"required"`
			QuantityKg  decimal.Decimal `json:"quantity_kg"`
		}
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		entry, err := ex.RecordConsumption(ctx, orderID, chi.URLParam(r, "batchID"), req.ProductName, req.PalletID, req.QuantityKg)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, ConsumptionResp{Response: response.OK("consumption recorded"), Entry: entry})
	}
}

// RegisterProduction - выпуск готовой продукции по завершённой партии.
func RegisterProduction(log *slog.Logger, ex BatchExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.batches.RegisterProduction"

		orderID, err := response.IDParam(r, "id")
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		var req struct {
			ProducedWeight decimal.Decimal `json:"produced_weight"`
		}
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		entry, err := ex.RegisterProduction(ctx, orderID, chi.URLParam(r, "batchID"), req.ProducedWeight)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, ProductionResp{Response: response.OK("production registered"), Entry: entry})
	}
}

func AnnulConsumption(log *slog.Logger, ex BatchExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.batches.AnnulConsumption"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		entry, err := ex.AnnulConsumption(ctx, chi.URLParam(r, "entryID"))
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, ConsumptionResp{Response: response.OK("consumption annulled"), Entry: entry})
	}
}

func AnnulProduction(log *slog.Logger, ex BatchExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.batches.AnnulProduction"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		entry, err := ex.AnnulProduction(ctx, chi.URLParam(r, "entryID"))
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, ProductionResp{Response: response.OK("production annulled"), Entry: entry})
	}
}
