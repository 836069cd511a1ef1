package storage

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInsufficientQuantity = errors.New("stock unit has insufficient quantity")

// StockUnit - паллета или другая единица хранения.
type StockUnit struct {
	ID          string          `json:"id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"current_quantity"`
	Unit        Unit            `json:"unit"`
	LocationID  string          `json:"location_id"`
	IsBlocked   bool            `json:"is_blocked"`
	BlockReason string          `json:"block_reason"`
	ExpiryDate  *time.Time      `json:"expiry_date"`
}

// Expired - просрочена ли единица на момент at. Без даты годности не просрочена.
func (u StockUnit) Expired(at time.Time) bool {
	return u.ExpiryDate != nil && u.ExpiryDate.Before(at)
}
