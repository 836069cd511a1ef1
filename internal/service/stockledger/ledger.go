package stockledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"prod-planner/internal/service/requirements"
	"prod-planner/internal/storage"
)

// Ledger - снимок доступного физического запаса на момент asOf.
// Учитываются только незаблокированные, непросроченные единицы с ненулевым количеством.
type Ledger struct {
	asOf   time.Time
	totals map[requirements.Key]decimal.Decimal
	units  map[string][]storage.StockUnit
}

func New(units []storage.StockUnit, asOf time.Time) *Ledger {
	l := &Ledger{
		asOf:   asOf,
		totals: make(map[requirements.Key]decimal.Decimal),
		units:  make(map[string][]storage.StockUnit),
	}

	for _, u := range units {
		if !l.usable(u) {
			continue
		}
		key := requirements.Key{ProductName: u.ProductName, Unit: unitOf(u)}
		l.totals[key] = l.totals[key].Add(u.Quantity)
		l.units[u.ProductName] = append(l.units[u.ProductName], u)
	}

	for name := range l.units {
		sortFEFO(l.units[name])
	}

	return l
}

func (l *Ledger) usable(u storage.StockUnit) bool {
	return !u.IsBlocked && u.Quantity.IsPositive() && !u.Expired(l.asOf)
}

// Available - доступное количество материала в указанной единице.
func (l *Ledger) Available(productName string, unit storage.Unit) decimal.Decimal {
	return l.totals[requirements.Key{ProductName: productName, Unit: unit}]
}

// UnblockedStock возвращает копию агрегатов по материалу и единице.
func (l *Ledger) UnblockedStock() map[requirements.Key]decimal.Decimal {
	out := make(map[requirements.Key]decimal.Decimal, len(l.totals))
	for k, v := range l.totals {
		out[k] = v
	}
	return out
}

// UnblockedUnitsSortedByExpiry - FEFO: сначала ближайший срок годности, единицы без срока в конце.
func (l *Ledger) UnblockedUnitsSortedByExpiry(productName string) []storage.StockUnit {
	units := l.units[productName]
	out := make([]storage.StockUnit, len(units))
	copy(out, units)
	return out
}

func (l *Ledger) AsOf() time.Time { return l.asOf }

func unitOf(u storage.StockUnit) storage.Unit {
	if u.Unit == "" {
		return storage.UnitKg
	}
	return u.Unit
}

func sortFEFO(units []storage.StockUnit) {
	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i].ExpiryDate, units[j].ExpiryDate
		switch {
		case a == nil && b == nil:
			return units[i].ID < units[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return units[i].ID < units[j].ID
		default:
			return a.Before(*b)
		}
	})
}
