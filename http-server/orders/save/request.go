package save

import (
	"github.com/shopspring/decimal"

	"prod-planner/http-server/response"
	"prod-planner/internal/service/planning"
	"prod-planner/internal/storage"
)

// OrderRequest - тело создания и изменения заказа.
type OrderRequest struct {
	Kind             string          `json:"kind" validate:"required,oneof=agro psd"`
	RecipeID         int64           `json:"recipe_id" validate:"required,gt=0"`
	TargetQuantityKg decimal.Decimal `json:"target_quantity_kg"`
	PlannedDate      string          `json:"planned_date" validate:"required"`
	ShelfLifeMonths  int             `json:"shelf_life_months" validate:"gt=0"`
	Notes            string          `json:"notes"`
	MixerCapacityKg  decimal.Decimal `json:"mixer_capacity_kg"`
	BatchCount       int             `json:"batch_count" validate:"gte=0"`
	AcceptShortages  bool            `json:"accept_shortages"`
}

// Input переводит тело запроса во входные данные планирования.
func (req OrderRequest) Input() (planning.OrderInput, error) {
	date, err := response.ParseDate("planned_date", req.PlannedDate)
	if err != nil {
		return planning.OrderInput{}, err
	}
	return planning.OrderInput{
		Kind:             storage.OrderKind(req.Kind),
		RecipeID:         req.RecipeID,
		TargetQuantityKg: req.TargetQuantityKg,
		PlannedDate:      date,
		ShelfLifeMonths:  req.ShelfLifeMonths,
		Notes:            req.Notes,
		MixerCapacityKg:  req.MixerCapacityKg,
		BatchCount:       req.BatchCount,
	}, nil
}

type Resp struct {
	response.Response
	Result planning.CommitResult `json:"result"`
}

// Commit - ответ на запись: отказ повторной проверки тоже 200, но success=false.
func Commit(result planning.CommitResult, okMessage string) Resp {
	if !result.Committed {
		return Resp{Response: response.Error(result.Reason), Result: result}
	}
	return Resp{Response: response.OK(okMessage), Result: result}
}
