package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchOngoing   BatchStatus = "ongoing"
	BatchCompleted BatchStatus = "completed"
)

type NirsStatus string

const (
	NirsPending NirsStatus = "pending"
	NirsOK      NirsStatus = "ok"
	NirsNok     NirsStatus = "nok"
)

type SamplingStatus string

const (
	SamplingPending SamplingStatus = "pending"
	SamplingOK      SamplingStatus = "ok"
)

type ConfirmationStatus struct {
	Nirs     NirsStatus     `json:"nirs"`
	Sampling SamplingStatus `json:"sampling"`
	// NirsNokAt - момент последнего nok, ещё не закрытого корректировкой.
	NirsNokAt *time.Time `json:"nirs_nok_at,omitempty"`
}

type Batch struct {
	ID                string             `json:"id"`
	OrderID           int64              `json:"order_id"`
	BatchNumber       int                `json:"batch_number"`
	Status            BatchStatus        `json:"status"`
	StartTime         *time.Time         `json:"start_time"`
	EndTime           *time.Time         `json:"end_time"`
	Confirmation      ConfirmationStatus `json:"confirmation_status"`
	WeighingFinished  []string           `json:"weighing_finished_ingredients"`
	ConsumedMaterials []ConsumedMaterial `json:"consumed_materials"`
	ProducedGoods     []ProducedGood     `json:"produced_goods"`
}

// ConsumedMaterial - одно списание сырья на заказ (и партию, если она известна).
type ConsumedMaterial struct {
	ID           string          `json:"id"`
	OrderID      int64           `json:"order_id"`
	BatchID      *string         `json:"batch_id"`
	ProductName  string          `json:"product_name"`
	QuantityKg   decimal.Decimal `json:"quantity_kg"`
	Unit         Unit            `json:"unit"`
	SourceID     string          `json:"source_id"`
	IsAdjustment bool            `json:"is_adjustment"`
	IsAnnulled   bool            `json:"is_annulled"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

type ProducedGood struct {
	ID             string          `json:"id"`
	BatchID        string          `json:"batch_id"`
	ProducedWeight decimal.Decimal `json:"produced_weight"`
	IsAnnulled     bool            `json:"is_annulled"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

// Draw - запрос на физическое списание. Источник либо паллета, либо станция.
type Draw struct {
	OrderID      int64
	BatchID      *string
	ProductName  string
	Quantity     decimal.Decimal
	Unit         Unit
	PalletID     string
	StationID    string
	IsAdjustment bool
}

func (d Draw) SourceID() string {
	if d.PalletID != "" {
		return d.PalletID
	}
	return d.StationID
}
