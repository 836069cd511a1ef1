package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"prod-planner/internal/service/capacity"
	"prod-planner/internal/service/reservation"
	"prod-planner/internal/storage"
)

type PlanRow struct {
	OrderID          int64               `json:"order_id"`
	Code             string              `json:"code"`
	Kind             storage.OrderKind   `json:"kind"`
	RecipeName       string              `json:"recipe_name"`
	PlannedDate      time.Time           `json:"planned_date"`
	TargetQuantityKg decimal.Decimal     `json:"target_quantity_kg"`
	EstimatedMinutes decimal.Decimal     `json:"estimated_minutes"`
	Status           storage.OrderStatus `json:"status"`
	HasShortages     bool                `json:"has_shortages"`
	Batches          int                 `json:"batches"`
}

type ShortageRow struct {
	OrderCode string `json:"order_code"`
	reservation.Shortage
}

// Overview - план по датам и нехватки запланированных заказов.
type Overview struct {
	GeneratedAt     time.Time         `json:"generated_at"`
	CapacityMinutes decimal.Decimal   `json:"capacity_minutes"`
	Workload        capacity.Workload `json:"workload"`
	Rows            []PlanRow         `json:"rows"`
	Shortages       []ShortageRow     `json:"shortages"`
}

func (s *Service) Overview(ctx context.Context) (Overview, error) {
	const op = "service.planning.Overview"

	snap, err := s.engine.LoadSnapshot(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("%s: %w", op, err)
	}

	out := Overview{
		GeneratedAt:     snap.TakenAt,
		CapacityMinutes: s.scheduler.DailyCapacityMinutes,
		Workload:        capacity.BuildWorkload(snap.Orders, snap.Recipes, 0),
		Rows:            make([]PlanRow, 0, len(snap.Orders)),
		Shortages:       make([]ShortageRow, 0),
	}

	for _, o := range snap.Orders {
		row := PlanRow{
			OrderID:          o.ID,
			Code:             o.Code,
			Kind:             o.Kind,
			PlannedDate:      o.PlannedDate,
			TargetQuantityKg: o.TargetQuantityKg,
			EstimatedMinutes: decimal.Zero,
			Status:           o.Status,
			HasShortages:     o.HasShortages,
			Batches:          len(o.Batches),
		}

		recipe, ok := snap.Recipes[o.RecipeID]
		if ok {
			row.RecipeName = recipe.Name
			if minutes, err := capacity.EstimatedMinutes(recipe, o.TargetQuantityKg); err == nil {
				row.EstimatedMinutes = minutes
			}
		}
		out.Rows = append(out.Rows, row)

		if !ok || o.Status != storage.OrderPlanned {
			continue
		}
		report, err := snap.Check(recipe, o.TargetQuantityKg, o.ID)
		if err != nil {
			continue
		}
		for _, sh := range report.Shortages {
			out.Shortages = append(out.Shortages, ShortageRow{OrderCode: o.Code, Shortage: sh})
		}
	}

	return out, nil
}
