package stock

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prod-planner/internal/apperr"
	"prod-planner/internal/service/coordinator"
	"prod-planner/internal/storage"
	"prod-planner/internal/storage/memory"
)

type countingRefresher struct {
	calls int
}

func (c *countingRefresher) RefreshShortageFlags(context.Context) (int, error) {
	c.calls++
	return 0, nil
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestService_AvailableAndFEFO(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	refresher := &countingRefresher{}
	svc := New(slog.Default(), st, refresher, coordinator.New())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	units := []storage.StockUnit{
		{ID: "P-1", ProductName: "Mąka", Quantity: decimal.NewFromInt(500), ExpiryDate: date(2026, 6, 1)},
		{ID: "P-2", ProductName: "Mąka", Quantity: decimal.NewFromInt(300), ExpiryDate: date(2026, 4, 1)},
		{ID: "P-3", ProductName: "Mąka", Quantity: decimal.NewFromInt(999), IsBlocked: true, BlockReason: "QC"},
		{ID: "P-4", ProductName: "Mąka", Quantity: decimal.NewFromInt(100), ExpiryDate: date(2026, 2, 1)},
		{ID: "W-1", ProductName: "Worek 25", Quantity: decimal.NewFromInt(40), Unit: storage.UnitPcs},
	}
	for _, u := range units {
		require.NoError(t, svc.PutUnit(ctx, u))
	}
	assert.Equal(t, len(units), refresher.calls)

	lines, err := svc.Available(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Mąka", lines[0].ProductName)
	assert.True(t, lines[0].Available.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, storage.UnitPcs, lines[1].Unit)

	fefo, err := svc.FEFO(ctx, "Mąka")
	require.NoError(t, err)
	require.Len(t, fefo, 2)
	assert.Equal(t, "P-2", fefo[0].ID)
	assert.Equal(t, "P-1", fefo[1].ID)
}

func TestService_PutUnitValidation(t *testing.T) {
	svc := New(slog.Default(), memory.New(), nil, coordinator.New())

	err := svc.PutUnit(context.Background(), storage.StockUnit{ID: "P-1", ProductName: "Sól", Quantity: decimal.NewFromInt(-1)})
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	err = svc.PutUnit(context.Background(), storage.StockUnit{ID: "P-1", ProductName: "Sól", Unit: "l"})
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	_, err = svc.FEFO(context.Background(), "")
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))
}
