package save

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"prod-planner/http-server/response"
	"prod-planner/internal/service/adjustment"
	"prod-planner/internal/storage"
)

type AdjustmentCreator interface {
	Create(ctx context.Context, req adjustment.CreateRequest) (storage.AdjustmentOrder, error)
}

type Material struct {
	ProductName string          `json:"product_name" validate:"required"`
	QuantityKg  decimal.Decimal `json:"quantity_kg"`
}

type Request struct {
	ProductionOrderID int64      `json:"production_order_id" validate:"required,gt=0"`
	BatchID           *string    `json:"batch_id"`
	Reason            string     `json:"reason" validate:"required,oneof=nirs_out_of_spec moisture_out_of_spec protein_out_of_spec planning_shortage"`
	Materials         []Material `json:"materials" validate:"required,min=1,dive"`
}

type Resp struct {
	response.Response
	Adjustment storage.AdjustmentOrder `json:"adjustment"`
}

// CreateAdjustment заводит корректировку. Если для партии уже есть незавершённая,
// отвечает 409 и existing_id.
func CreateAdjustment(log *slog.Logger, creator AdjustmentCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.adjustments.CreateAdjustment"

		var req Request
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		materials := make([]adjustment.MaterialRequest, 0, len(req.Materials))
		for _, m := range req.Materials {
			materials = append(materials, adjustment.MaterialRequest{ProductName: m.ProductName, QuantityKg: m.QuantityKg})
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		a, err := creator.Create(ctx, adjustment.CreateRequest{
			ProductionOrderID: req.ProductionOrderID,
			BatchID:           req.BatchID,
			Reason:            storage.AdjustmentReason(req.Reason),
			Materials:         materials,
		})
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Resp{Response: response.OK("adjustment order created"), Adjustment: a})
	}
}
