package save

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

type StockUnitSaver interface {
	PutUnit(ctx context.Context, u storage.StockUnit) error
}

type Request struct {
	ProductName string          `json:"product_name" validate:"required"`
	Quantity    decimal.Decimal `json:"current_quantity"`
	Unit        string          `json:"unit" validate:"omitempty,oneof=kg pcs"`
	LocationID  string          `json:"location_id"`
	IsBlocked   bool            `json:"is_blocked"`
	BlockReason string          `json:"block_reason"`
	ExpiryDate  string          `json:"expiry_date"`
}

// PutStockUnit принимает состояние паллеты от внешней складской системы.
func PutStockUnit(log *slog.Logger, saver StockUnitSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.materials.PutStockUnit"

		var req Request
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		u := storage.StockUnit{
			ID:          chi.URLParam(r, "unitID"),
			ProductName: req.ProductName,
			Quantity:    req.Quantity,
			Unit:        storage.Unit(req.Unit),
			LocationID:  req.LocationID,
			IsBlocked:   req.IsBlocked,
			BlockReason: req.BlockReason,
		}
		if req.ExpiryDate != "" {
			expiry, err := response.ParseDate("expiry_date", req.ExpiryDate)
			if err != nil {
				response.Fail(w, r, log, op, err)
				return
			}
			u.ExpiryDate = &expiry
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := saver.PutUnit(ctx, u); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		render.JSON(w, r, response.OK("stock unit saved"))
	}
}
