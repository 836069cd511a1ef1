package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

type AdjustmentStatus string

const (
	AdjustmentPlanned         AdjustmentStatus = "planned"
	AdjustmentMaterialPicking AdjustmentStatus = "material_picking"
	AdjustmentProcessing      AdjustmentStatus = "processing"
	AdjustmentCompleted       AdjustmentStatus = "completed"
)

type AdjustmentReason string

const (
	ReasonNirsOutOfSpec     AdjustmentReason = "nirs_out_of_spec"
	ReasonMoistureOutOfSpec AdjustmentReason = "moisture_out_of_spec"
	ReasonProteinOutOfSpec  AdjustmentReason = "protein_out_of_spec"
	ReasonPlanningShortage  AdjustmentReason = "planning_shortage"
)

// Analytical - причина порождена отрицательным результатом NIRS.
func (r AdjustmentReason) Analytical() bool {
	switch r {
	case ReasonNirsOutOfSpec, ReasonMoistureOutOfSpec, ReasonProteinOutOfSpec:
		return true
	}
	return false
}

func (r AdjustmentReason) Valid() bool {
	return r.Analytical() || r == ReasonPlanningShortage
}

type AdjustmentOrder struct {
	ID                string               `json:"id"`
	ProductionOrderID int64                `json:"production_order_id"`
	BatchID           *string              `json:"batch_id"`
	Reason            AdjustmentReason     `json:"reason"`
	Status            AdjustmentStatus     `json:"status"`
	ContainerID       string               `json:"container_id"`
	Materials         []AdjustmentMaterial `json:"materials"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
	CompletedAt       *time.Time           `json:"completed_at"`
}

type AdjustmentMaterial struct {
	ProductName      string          `json:"product_name"`
	QuantityKg       decimal.Decimal `json:"quantity_kg"`
	PickedQuantityKg decimal.Decimal `json:"picked_quantity_kg"`
	SourcePalletID   *string         `json:"source_pallet_id"`
}

func (a *AdjustmentOrder) Material(productName string) *AdjustmentMaterial {
	for i := range a.Materials {
		if a.Materials[i].ProductName == productName {
			return &a.Materials[i]
		}
	}
	return nil
}
