package check

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"prod-planner/http-server/response"
	"prod-planner/internal/service/planning"
)

type Checker interface {
	Check(ctx context.Context, in planning.CheckInput) (planning.CheckResult, error)
}

type Request struct {
	RecipeID         int64           `json:"recipe_id" validate:"required,gt=0"`
	TargetQuantityKg decimal.Decimal `json:"target_quantity_kg"`
	PlannedDate      string          `json:"planned_date" validate:"required"`
	ExcludeID        int64           `json:"exclude_id" validate:"gte=0"`
}

type Resp struct {
	response.Response
	Result planning.CheckResult `json:"result"`
}

// CheckOrder - проверка без записи: нехватка и разбиение приходят данными, не ошибкой.
func CheckOrder(log *slog.Logger, checker Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.planning.CheckOrder"

		var req Request
		if err := response.Decode(r, &req); err != nil {
			response.Fail(w, r, log, op, err)
			return
		}
		date, err := response.ParseDate("planned_date", req.PlannedDate)
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		result, err := checker.Check(ctx, planning.CheckInput{
			RecipeID:         req.RecipeID,
			TargetQuantityKg: req.TargetQuantityKg,
			PlannedDate:      date,
			ExcludeID:        req.ExcludeID,
		})
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		message := "order fits"
		switch {
		case !result.Capacity.Fits:
			message = "daily capacity exceeded, split proposed"
		case !result.Stock.GloballySufficient:
			message = "materials are short"
		}

		render.JSON(w, r, Resp{Response: response.OK(message), Result: result})
	}
}
