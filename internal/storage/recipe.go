package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unit - единица учёта запаса. Вес и штуки никогда не складываются.
type Unit string

const (
	UnitKg  Unit = "kg"
	UnitPcs Unit = "pcs"
)

type Recipe struct {
	ID                        int64           `json:"id"`
	Name                      string          `json:"name"`
	ProductionRateKgPerMinute decimal.Decimal `json:"production_rate_kg_per_minute"`
	Ingredients               []Ingredient    `json:"ingredients"`
	Packaging                 PackagingBOM    `json:"packaging"`
	IsActive                  bool            `json:"is_active"`
	PreviousVersionID         *int64          `json:"previous_version_id"`
	CreatedAt                 time.Time       `json:"created_at"`
}

type Ingredient struct {
	ProductName string          `json:"product_name"`
	QuantityKg  decimal.Decimal `json:"quantity_kg"`
}

type PackagingBOM struct {
	Bag                string          `json:"bag"`
	BagCapacityKg      decimal.Decimal `json:"bag_capacity_kg"`
	FoilRoll           string          `json:"foil_roll"`
	FoilWeightPerBagKg decimal.Decimal `json:"foil_weight_per_bag_kg"`
	StretchFilm        *string         `json:"stretch_film"`
	SlipSheet          *string         `json:"slip_sheet"`
}

// BatchWeightKg - сумма весов ингредиентов рецептуры.
func (r Recipe) BatchWeightKg() decimal.Decimal {
	total := decimal.Zero
	for _, ing := range r.Ingredients {
		total = total.Add(ing.QuantityKg)
	}
	return total
}

func (r Recipe) IngredientNames() []string {
	names := make([]string, 0, len(r.Ingredients))
	seen := make(map[string]bool, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		if seen[ing.ProductName] {
			continue
		}
		seen[ing.ProductName] = true
		names = append(names, ing.ProductName)
	}
	return names
}
