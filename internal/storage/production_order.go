package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind различает линии AGRO и PSD.
type OrderKind string

const (
	KindAgro OrderKind = "agro"
	KindPsd  OrderKind = "psd"
)

func (k OrderKind) Valid() bool {
	return k == KindAgro || k == KindPsd
}

func (k OrderKind) CodePrefix() string {
	switch k {
	case KindAgro:
		return "ZLEAGR"
	case KindPsd:
		return "ZLEPSD"
	default:
		return "ZLE"
	}
}

// FormatOrderCode собирает код вида ZLEAGR00001.
func FormatOrderCode(kind OrderKind, seq int) string {
	return fmt.Sprintf("%s%05d", kind.CodePrefix(), seq)
}

type OrderStatus string

const (
	OrderPlanned   OrderStatus = "planned"
	OrderOngoing   OrderStatus = "ongoing"
	OrderPaused    OrderStatus = "paused"
	OrderCompleted OrderStatus = "completed"
)

// AgroRun - данные, специфичные для линии AGRO: партии режутся по объёму смесителя.
type AgroRun struct {
	MixerCapacityKg decimal.Decimal `json:"mixer_capacity_kg"`
}

// PsdTask - данные линии PSD: количество партий задаётся планировщиком.
type PsdTask struct {
	BatchCount int `json:"batch_count"`
}

type ProductionOrder struct {
	ID               int64           `json:"id"`
	Code             string          `json:"code"`
	Kind             OrderKind       `json:"kind"`
	RecipeID         int64           `json:"recipe_id"`
	TargetQuantityKg decimal.Decimal `json:"target_quantity_kg"`
	PlannedDate      time.Time       `json:"planned_date"`
	ShelfLifeMonths  int             `json:"shelf_life_months"`
	Status           OrderStatus     `json:"status"`
	HasShortages     bool            `json:"has_shortages"`
	Notes            string          `json:"notes"`
	SplitGroup       string          `json:"split_group,omitempty"`
	Agro             *AgroRun        `json:"agro,omitempty"`
	Psd              *PsdTask        `json:"psd,omitempty"`
	Batches          []Batch         `json:"batches"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (o *ProductionOrder) BatchByID(id string) *Batch {
	for i := range o.Batches {
		if o.Batches[i].ID == id {
			return &o.Batches[i]
		}
	}
	return nil
}
