package stockledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prod-planner/internal/storage"
)

var now = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(offset int) *time.Time {
	t := now.AddDate(0, 0, offset)
	return &t
}

func unit(id, product, qty string, u storage.Unit, expiry *time.Time) storage.StockUnit {
	return storage.StockUnit{ID: id, ProductName: product, Quantity: d(qty), Unit: u, LocationID: "A-01", ExpiryDate: expiry}
}

func TestLedger_AggregatesUnblocked(t *testing.T) {
	blocked := unit("P4", "Mąka", "999", storage.UnitKg, day(30))
	blocked.IsBlocked = true
	blocked.BlockReason = "kontrola jakości"

	l := New([]storage.StockUnit{
		unit("P1", "Mąka", "500", storage.UnitKg, day(10)),
		unit("P2", "Mąka", "250.5", storage.UnitKg, day(5)),
		unit("P3", "Sól", "40", storage.UnitKg, nil),
		blocked,
		unit("P5", "Mąka", "0", storage.UnitKg, day(1)),
		unit("P6", "Mąka", "100", storage.UnitKg, day(-1)),
	}, now)

	assert.True(t, d("750.5").Equal(l.Available("Mąka", storage.UnitKg)))
	assert.True(t, d("40").Equal(l.Available("Sól", storage.UnitKg)))
	assert.True(t, l.Available("Cukier", storage.UnitKg).IsZero())
}

func TestLedger_WeightAndPiecesKeptApart(t *testing.T) {
	l := New([]storage.StockUnit{
		unit("W1", "Worek 25kg", "300", storage.UnitPcs, nil),
		unit("W2", "Worek 25kg", "12", storage.UnitKg, nil),
		unit("W3", "Worek 25kg", "200", storage.UnitPcs, nil),
	}, now)

	assert.True(t, d("500").Equal(l.Available("Worek 25kg", storage.UnitPcs)))
	assert.True(t, d("12").Equal(l.Available("Worek 25kg", storage.UnitKg)))
	assert.Len(t, l.UnblockedStock(), 2)
}

func TestLedger_FEFOOrder(t *testing.T) {
	blocked := unit("P9", "Mąka", "10", storage.UnitKg, day(1))
	blocked.IsBlocked = true

	l := New([]storage.StockUnit{
		unit("P1", "Mąka", "10", storage.UnitKg, day(20)),
		unit("P2", "Mąka", "10", storage.UnitKg, nil),
		unit("P3", "Mąka", "10", storage.UnitKg, day(2)),
		blocked,
		unit("P4", "Mąka", "10", storage.UnitKg, day(2)),
	}, now)

	units := l.UnblockedUnitsSortedByExpiry("Mąka")
	require.Len(t, units, 4)

	ids := []string{units[0].ID, units[1].ID, units[2].ID, units[3].ID}
	assert.Equal(t, []string{"P3", "P4", "P1", "P2"}, ids)
}

func TestLedger_FEFOReturnsCopy(t *testing.T) {
	l := New([]storage.StockUnit{unit("P1", "Mąka", "10", storage.UnitKg, day(3))}, now)

	units := l.UnblockedUnitsSortedByExpiry("Mąka")
	units[0].Quantity = d("0")

	assert.True(t, d("10").Equal(l.UnblockedUnitsSortedByExpiry("Mąka")[0].Quantity))
}

func TestLedger_DefaultsUnitToKg(t *testing.T) {
	l := New([]storage.StockUnit{{ID: "X", ProductName: "Kreda", Quantity: d("5")}}, now)
	assert.True(t, d("5").Equal(l.Available("Kreda", storage.UnitKg)))
}
