package memory

import (
	"slices"
	"sync"
	"time"

	"prod-planner/internal/storage"
)

// Storage - хранилище в памяти для локального запуска и тестов сервисов.
// Все методы возвращают копии, чтобы вызывающий не мог изменить состояние в обход.
type Storage struct {
	mu sync.RWMutex

	recipes     map[int64]storage.Recipe
	orders      map[int64]storage.ProductionOrder
	units       map[string]storage.StockUnit
	adjustments map[string]storage.AdjustmentOrder
	consumption []storage.ConsumedMaterial
	produced    []storage.ProducedGood

	recipeSeq int64
	orderSeq  int64
	codeSeq   map[storage.OrderKind]int

	now func() time.Time
}

func New() *Storage {
	return &Storage{
		recipes:     make(map[int64]storage.Recipe),
		orders:      make(map[int64]storage.ProductionOrder),
		units:       make(map[string]storage.StockUnit),
		adjustments: make(map[string]storage.AdjustmentOrder),
		codeSeq:     make(map[storage.OrderKind]int),
		now:         time.Now,
	}
}

func cloneRecipe(r storage.Recipe) storage.Recipe {
	r.Ingredients = slices.Clone(r.Ingredients)
	if r.PreviousVersionID != nil {
		id := *r.PreviousVersionID
		r.PreviousVersionID = &id
	}
	return r
}

func cloneBatch(b storage.Batch) storage.Batch {
	b.WeighingFinished = slices.Clone(b.WeighingFinished)
	b.ConsumedMaterials = nil
	b.ProducedGoods = nil
	return b
}

func cloneOrder(o storage.ProductionOrder) storage.ProductionOrder {
	batches := make([]storage.Batch, len(o.Batches))
	for i, b := range o.Batches {
		batches[i] = cloneBatch(b)
	}
	o.Batches = batches
	if o.Agro != nil {
		agro := *o.Agro
		o.Agro = &agro
	}
	if o.Psd != nil {
		psd := *o.Psd
		o.Psd = &psd
	}
	return o
}

func cloneAdjustment(a storage.AdjustmentOrder) storage.AdjustmentOrder {
	a.Materials = slices.Clone(a.Materials)
	return a
}
