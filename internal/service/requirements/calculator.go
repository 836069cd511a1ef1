package requirements

import (
	"sort"

	"github.com/shopspring/decimal"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

var (
	// SafetyOverage - фиксированный запас 5% на сырьё.
	SafetyOverage = decimal.RequireFromString("1.05")

	stretchFilmPerTonKg = decimal.RequireFromString("1.2")
	ton                 = decimal.NewFromInt(1000)
)

type MaterialKind string

const (
	RawMaterial MaterialKind = "raw"
	Packaging   MaterialKind = "packaging"
)

// Key идентифицирует материал вместе с единицей учёта.
type Key struct {
	ProductName string
	Unit        storage.Unit
}

type Requirement struct {
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        storage.Unit    `json:"unit"`
	Kind        MaterialKind    `json:"kind"`
}

func (r Requirement) Key() Key {
	return Key{ProductName: r.ProductName, Unit: r.Unit}
}

// Requirements - потребность в сырье и упаковке для одного заказа.
type Requirements struct {
	Materials []Requirement `json:"materials"`
}

func (r Requirements) ByKey() map[Key]decimal.Decimal {
	out := make(map[Key]decimal.Decimal, len(r.Materials))
	for _, m := range r.Materials {
		out[m.Key()] = out[m.Key()].Add(m.Quantity)
	}
	return out
}

func (r Requirements) Get(productName string, unit storage.Unit) decimal.Decimal {
	return r.ByKey()[Key{ProductName: productName, Unit: unit}]
}

// Calculate масштабирует рецептуру на целевое количество.
// Сырьё: quantityKg * (target / batchWeight) * 1.05.
// Упаковка считается без запаса.
func Calculate(recipe storage.Recipe, targetKg decimal.Decimal) (Requirements, error) {
	if !targetKg.IsPositive() {
		return Requirements{}, apperr.Validation("target_quantity_kg", "must be positive, got %s", targetKg)
	}

	batchWeight := recipe.BatchWeightKg()
	if !batchWeight.IsPositive() {
		return Requirements{}, &apperr.InvalidRecipeError{RecipeID: recipe.ID, Reason: "ingredient weights sum to zero"}
	}

	acc := newAccumulator()
	scale := targetKg.Div(batchWeight)
	for _, ing := range recipe.Ingredients {
		if ing.QuantityKg.IsNegative() {
			return Requirements{}, &apperr.InvalidRecipeError{RecipeID: recipe.ID, Reason: "negative ingredient " + ing.ProductName}
		}
		acc.add(ing.ProductName, storage.UnitKg, RawMaterial, ing.QuantityKg.Mul(scale).Mul(SafetyOverage))
	}

	if err := addPackaging(acc, recipe, targetKg); err != nil {
		return Requirements{}, err
	}

	return acc.result(), nil
}

func addPackaging(acc *accumulator, recipe storage.Recipe, targetKg decimal.Decimal) error {
	bom := recipe.Packaging

	if bom.Bag != "" {
		if !bom.BagCapacityKg.IsPositive() {
			return &apperr.InvalidRecipeError{RecipeID: recipe.ID, Reason: "bag capacity must be positive"}
		}
		totalBags := targetKg.Div(bom.BagCapacityKg).Ceil()
		acc.add(bom.Bag, storage.UnitPcs, Packaging, totalBags)

		if bom.FoilRoll != "" {
			acc.add(bom.FoilRoll, storage.UnitKg, Packaging, totalBags.Mul(bom.FoilWeightPerBagKg))
		}
	}

	tons := targetKg.Div(ton)
	if bom.StretchFilm != nil && *bom.StretchFilm != "" {
		acc.add(*bom.StretchFilm, storage.UnitKg, Packaging, tons.Mul(stretchFilmPerTonKg))
	}
	if bom.SlipSheet != nil && *bom.SlipSheet != "" {
		acc.add(*bom.SlipSheet, storage.UnitPcs, Packaging, tons.Ceil())
	}

	return nil
}

type accumulator struct {
	order []Key
	items map[Key]*Requirement
}

func newAccumulator() *accumulator {
	return &accumulator{items: make(map[Key]*Requirement)}
}

// add суммирует повторяющиеся позиции, сохраняя порядок первого появления.
func (a *accumulator) add(name string, unit storage.Unit, kind MaterialKind, qty decimal.Decimal) {
	key := Key{ProductName: name, Unit: unit}
	if item, ok := a.items[key]; ok {
		item.Quantity = item.Quantity.Add(qty)
		return
	}
	a.order = append(a.order, key)
	a.items[key] = &Requirement{ProductName: name, Quantity: qty, Unit: unit, Kind: kind}
}

func (a *accumulator) result() Requirements {
	out := Requirements{Materials: make([]Requirement, 0, len(a.order))}
	for _, key := range a.order {
		out.Materials = append(out.Materials, *a.items[key])
	}
	return out
}

// SortedKeys - ключи в стабильном порядке, для отчётов.
func SortedKeys[V any](m map[Key]V) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProductName != keys[j].ProductName {
			return keys[i].ProductName < keys[j].ProductName
		}
		return keys[i].Unit < keys[j].Unit
	})
	return keys
}
