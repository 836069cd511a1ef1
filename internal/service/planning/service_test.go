package planning

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prod-planner/internal/apperr"
	"prod-planner/internal/service/capacity"
	"prod-planner/internal/service/coordinator"
	"prod-planner/internal/storage"
	"prod-planner/internal/storage/memory"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// понедельник
var day = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

type fixture struct {
	st       *memory.Storage
	svc      *Service
	recipeID int64
}

// Рецептура Flour 80 / Salt 20, 5 кг/мин: 1000 кг = 200 минут.
func newFixture(t *testing.T, salt string) fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	recipeID, err := st.CreateRecipe(ctx, storage.Recipe{
		Name:                      "Mieszanka",
		ProductionRateKgPerMinute: d("5"),
		IsActive:                  true,
		Ingredients: []storage.Ingredient{
			{ProductName: "Flour", QuantityKg: d("80")},
			{ProductName: "Salt", QuantityKg: d("20")},
		},
	})
	require.NoError(t, err)

	require.NoError(t, st.PutStockUnit(ctx, storage.StockUnit{ID: "P-FLOUR", ProductName: "Flour", Quantity: d("10000")}))
	require.NoError(t, st.PutStockUnit(ctx, storage.StockUnit{ID: "P-SALT", ProductName: "Salt", Quantity: d(salt)}))

	svc := New(slog.Default(), st, capacity.New(480, false, 60), coordinator.New(), nil)
	return fixture{st: st, svc: svc, recipeID: recipeID}
}

func (f fixture) input(target string, date time.Time) OrderInput {
	return OrderInput{
		Kind:             storage.KindAgro,
		RecipeID:         f.recipeID,
		TargetQuantityKg: d(target),
		PlannedDate:      date,
		ShelfLifeMonths:  12,
		Notes:            "pilne",
		MixerCapacityKg:  d("400"),
	}
}

func (f fixture) create(t *testing.T, target string, date time.Time, accept bool) CommitResult {
	t.Helper()
	res, err := f.svc.CreateOrder(context.Background(), f.input(target, date), accept)
	require.NoError(t, err)
	return res
}

func TestCheck_SufficientAndFits(t *testing.T) {
	f := newFixture(t, "1000")

	res, err := f.svc.Check(context.Background(), CheckInput{RecipeID: f.recipeID, TargetQuantityKg: d("1000"), PlannedDate: day})
	require.NoError(t, err)

	assert.True(t, res.Stock.GloballySufficient)
	assert.True(t, res.Capacity.Fits)
	assert.True(t, d("200").Equal(res.Capacity.CandidateMinutes))
	require.Len(t, res.Stock.Materials, 2)
	assert.True(t, d("840").Equal(res.Stock.Materials[0].Required))
}

func TestCheck_Validation(t *testing.T) {
	f := newFixture(t, "1000")

	_, err := f.svc.Check(context.Background(), CheckInput{RecipeID: f.recipeID, TargetQuantityKg: d("0"), PlannedDate: day})
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	_, err = f.svc.Check(context.Background(), CheckInput{RecipeID: 999, TargetQuantityKg: d("10"), PlannedDate: day})
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, "1000")

	res := f.create(t, "1000", day, false)
	require.True(t, res.Committed)
	require.Len(t, res.Orders, 1)

	o, err := f.svc.GetOrder(context.Background(), res.Orders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "ZLEAGR00001", o.Code)
	assert.Equal(t, storage.OrderPlanned, o.Status)
	assert.False(t, o.HasShortages)
	require.Len(t, o.Batches, 3)
	for i, b := range o.Batches {
		assert.Equal(t, i+1, b.BatchNumber)
		assert.Equal(t, storage.BatchPending, b.Status)
		assert.Equal(t, storage.NirsPending, b.Confirmation.Nirs)
	}

	second := f.create(t, "100", day.AddDate(0, 0, 1), false)
	require.True(t, second.Committed)
	assert.Equal(t, "ZLEAGR00002", second.Orders[0].Code)
}

func TestCreateOrder_PsdCodesAndBatches(t *testing.T) {
	f := newFixture(t, "1000")
	in := f.input("500", day)
	in.Kind = storage.KindPsd
	in.BatchCount = 4

	res, err := f.svc.CreateOrder(context.Background(), in, false)
	require.NoError(t, err)
	require.True(t, res.Committed)
	assert.Equal(t, "ZLEPSD00001", res.Orders[0].Code)
	assert.Len(t, res.Orders[0].Batches, 4)
	assert.Nil(t, res.Orders[0].Agro)
	require.NotNil(t, res.Orders[0].Psd)
}

func TestCreateOrder_InputValidation(t *testing.T) {
	f := newFixture(t, "1000")

	bad := []func(in *OrderInput){
		func(in *OrderInput) { in.Kind = "other" },
		func(in *OrderInput) { in.TargetQuantityKg = d("-1") },
		func(in *OrderInput) { in.PlannedDate = time.Time{} },
		func(in *OrderInput) { in.MixerCapacityKg = decimal.Zero },
		func(in *OrderInput) { in.ShelfLifeMonths = 0 },
		func(in *OrderInput) { in.ShelfLifeMonths = -1 },
		func(in *OrderInput) { in.MixerCapacityKg = d("0.001") },
		func(in *OrderInput) { in.Kind = storage.KindPsd; in.BatchCount = 0 },
		func(in *OrderInput) { in.Kind = storage.KindPsd; in.BatchCount = MaxBatches + 1 },
	}
	for i, mutate := range bad {
		in := f.input("100", day)
		mutate(&in)
		_, err := f.svc.CreateOrder(context.Background(), in, true)
		assert.Equal(t, apperr.KindValidation, apperr.Kind(err), "case %d", i)
	}
}

func TestCreateOrder_ShortageNeedsAcceptance(t *testing.T) {
	// соли 300: первый заказ резервирует 210, второму остаётся 90 из нужных 210
	f := newFixture(t, "300")
	first := f.create(t, "1000", day, false)
	require.True(t, first.Committed)

	res := f.create(t, "1000", day.AddDate(0, 0, 1), false)
	assert.False(t, res.Committed)
	assert.Equal(t, reasonShortage, res.Reason)
	require.Len(t, res.Check.Stock.Shortages, 1)
	assert.Equal(t, "Salt", res.Check.Stock.Shortages[0].ProductName)
	assert.True(t, d("120").Equal(res.Check.Stock.Shortages[0].Missing))

	orders, err := f.svc.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	res = f.create(t, "1000", day.AddDate(0, 0, 1), true)
	require.True(t, res.Committed)
	assert.True(t, res.Orders[0].HasShortages)

	// первый заказ теперь тоже в нехватке: второй резервирует его соль
	o, err := f.svc.GetOrder(context.Background(), first.Orders[0].ID)
	require.NoError(t, err)
	assert.True(t, o.HasShortages)
}

func TestUpdateOrder_ExcludesOwnReservation(t *testing.T) {
	// 300 соли хватает только на один заказ 1000 кг (210)
	f := newFixture(t, "300")
	res := f.create(t, "1000", day, false)
	id := res.Orders[0].ID

	check, err := f.svc.Check(context.Background(), CheckInput{RecipeID: f.recipeID, TargetQuantityKg: d("1000"), PlannedDate: day, ExcludeID: id})
	require.NoError(t, err)
	assert.True(t, check.Stock.GloballySufficient)

	in := f.input("1200", day)
	in.Notes = "zmiana"
	upd, err := f.svc.UpdateOrder(context.Background(), id, in, false)
	require.NoError(t, err)
	require.True(t, upd.Committed)

	o, err := f.svc.GetOrder(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, d("1200").Equal(o.TargetQuantityKg))
	assert.Equal(t, "zmiana", o.Notes)
	assert.Len(t, o.Batches, 3)
	assert.Equal(t, "ZLEAGR00001", o.Code)
}

func TestUpdateOrder_Guards(t *testing.T) {
	f := newFixture(t, "1000")
	ctx := context.Background()
	res := f.create(t, "1000", day, false)
	o := res.Orders[0]

	in := f.input("1000", day)
	in.Kind = storage.KindPsd
	in.BatchCount = 2
	_, err := f.svc.UpdateOrder(ctx, o.ID, in, false)
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	_, err = f.svc.UpdateOrder(ctx, 404, f.input("1000", day), false)
	assert.Equal(t, apperr.KindNotFound, apperr.Kind(err))

	stored, err := f.st.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	stored.Status = storage.OrderOngoing
	require.NoError(t, f.st.UpdateOrder(ctx, stored))

	_, err = f.svc.UpdateOrder(ctx, o.ID, f.input("900", day), false)
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))
	assert.Equal(t, apperr.KindValidation, apperr.Kind(f.svc.DeleteOrder(ctx, o.ID)))
}

func TestDeleteOrder_ReleasesReservation(t *testing.T) {
	f := newFixture(t, "300")
	ctx := context.Background()
	first := f.create(t, "1000", day, false)
	second := f.create(t, "1000", day.AddDate(0, 0, 1), true)
	require.True(t, second.Orders[0].HasShortages)

	require.NoError(t, f.svc.DeleteOrder(ctx, first.Orders[0].ID))

	o, err := f.svc.GetOrder(ctx, second.Orders[0].ID)
	require.NoError(t, err)
	assert.False(t, o.HasShortages)

	_, err = f.svc.GetOrder(ctx, first.Orders[0].ID)
	assert.Equal(t, apperr.KindNotFound, apperr.Kind(err))
}

func TestInactiveRecipeRejectedForNewOrders(t *testing.T) {
	f := newFixture(t, "1000")
	require.NoError(t, f.st.DeactivateRecipe(context.Background(), f.recipeID))

	_, err := f.svc.CreateOrder(context.Background(), f.input("100", day), true)
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))
}

func TestCapacitySplit(t *testing.T) {
	f := newFixture(t, "1000")
	ctx := context.Background()

	// 200 минут занято
	require.True(t, f.create(t, "1000", day, false).Committed)

	// 2000 кг = 400 минут, свободно 280 минут = 1400 кг
	check, err := f.svc.Check(ctx, CheckInput{RecipeID: f.recipeID, TargetQuantityKg: d("2000"), PlannedDate: day})
	require.NoError(t, err)
	require.False(t, check.Capacity.Fits)
	require.Len(t, check.Capacity.Parts, 2)
	assert.True(t, d("1400").Equal(check.Capacity.Parts[0].BatchSizeKg))
	assert.True(t, d("600").Equal(check.Capacity.Parts[1].BatchSizeKg))
	assert.Equal(t, capacity.DateKey(day.AddDate(0, 0, 1)), capacity.DateKey(check.Capacity.Parts[1].Date))

	rejected := f.create(t, "2000", day, true)
	assert.False(t, rejected.Committed)
	assert.Equal(t, reasonCapacity, rejected.Reason)

	res, err := f.svc.ConfirmSplit(ctx, f.input("2000", day), check.Capacity.Parts, false)
	require.NoError(t, err)
	require.True(t, res.Committed)
	require.Len(t, res.Orders, 2)

	group := res.Orders[0].SplitGroup
	assert.NotEmpty(t, group)
	total := decimal.Zero
	for _, o := range res.Orders {
		assert.Equal(t, group, o.SplitGroup)
		assert.Equal(t, f.recipeID, o.RecipeID)
		assert.Equal(t, 12, o.ShelfLifeMonths)
		assert.Equal(t, "pilne", o.Notes)
		total = total.Add(o.TargetQuantityKg)
	}
	assert.True(t, d("2000").Equal(total))
	assert.Equal(t, "ZLEAGR00002", res.Orders[0].Code)
	assert.Equal(t, "ZLEAGR00003", res.Orders[1].Code)

	// день заполнен, то же предложение уже неактуально
	_, err = f.svc.ConfirmSplit(ctx, f.input("2000", day), check.Capacity.Parts, false)
	assert.Equal(t, apperr.KindStale, apperr.Kind(err))
}

func TestConfirmSplit_Validation(t *testing.T) {
	f := newFixture(t, "1000")
	ctx := context.Background()

	_, err := f.svc.ConfirmSplit(ctx, f.input("100", day), nil, false)
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	// одна часть допустима, но свободный день делает её устаревшей
	_, err = f.svc.ConfirmSplit(ctx, f.input("100", day), []capacity.Part{{Date: day, BatchSizeKg: d("100")}}, false)
	assert.Equal(t, apperr.KindStale, apperr.Kind(err))

	parts := []capacity.Part{{Date: day, BatchSizeKg: d("50")}, {Date: day.AddDate(0, 0, 1), BatchSizeKg: d("40")}}
	_, err = f.svc.ConfirmSplit(ctx, f.input("100", day), parts, false)
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	// заказ помещается в день, разбиение устарело
	parts = []capacity.Part{{Date: day, BatchSizeKg: d("60")}, {Date: day.AddDate(0, 0, 1), BatchSizeKg: d("40")}}
	_, err = f.svc.ConfirmSplit(ctx, f.input("100", day), parts, false)
	assert.Equal(t, apperr.KindStale, apperr.Kind(err))
}

func TestConfirmSplit_SinglePartOnFullDay(t *testing.T) {
	f := newFixture(t, "1000")
	ctx := context.Background()

	// 2400 кг = 480 минут, день занят полностью
	require.True(t, f.create(t, "2400", day, false).Committed)

	check, err := f.svc.Check(ctx, CheckInput{RecipeID: f.recipeID, TargetQuantityKg: d("100"), PlannedDate: day})
	require.NoError(t, err)
	require.False(t, check.Capacity.Fits)
	require.Len(t, check.Capacity.Parts, 1)
	assert.Equal(t, capacity.DateKey(day.AddDate(0, 0, 1)), capacity.DateKey(check.Capacity.Parts[0].Date))
	assert.True(t, d("100").Equal(check.Capacity.Parts[0].BatchSizeKg))

	rejected := f.create(t, "100", day, false)
	assert.False(t, rejected.Committed)
	assert.Equal(t, reasonCapacity, rejected.Reason)

	res, err := f.svc.ConfirmSplit(ctx, f.input("100", day), check.Capacity.Parts, false)
	require.NoError(t, err)
	require.True(t, res.Committed)
	require.Len(t, res.Orders, 1)
	assert.NotEmpty(t, res.Orders[0].SplitGroup)
	assert.Equal(t, capacity.DateKey(day.AddDate(0, 0, 1)), capacity.DateKey(res.Orders[0].PlannedDate))
	assert.True(t, d("100").Equal(res.Orders[0].TargetQuantityKg))
}

func TestConfirmSplit_PartShortage(t *testing.T) {
	// после первого заказа остаётся 390 соли: части нужно 294 и 126
	f := newFixture(t, "600")
	ctx := context.Background()
	require.True(t, f.create(t, "1000", day, false).Committed)

	check, err := f.svc.Check(ctx, CheckInput{RecipeID: f.recipeID, TargetQuantityKg: d("2000"), PlannedDate: day})
	require.NoError(t, err)
	require.False(t, check.Capacity.Fits)

	res, err := f.svc.ConfirmSplit(ctx, f.input("2000", day), check.Capacity.Parts, false)
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Contains(t, res.Reason, "part 2")

	orders, err := f.svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	res, err = f.svc.ConfirmSplit(ctx, f.input("2000", day), check.Capacity.Parts, true)
	require.NoError(t, err)
	require.True(t, res.Committed)
	assert.True(t, res.Orders[1].HasShortages)
}

func TestRefreshShortageFlags(t *testing.T) {
	f := newFixture(t, "1000")
	ctx := context.Background()
	a := f.create(t, "1000", day, false).Orders[0]
	b := f.create(t, "1000", day.AddDate(0, 0, 1), false).Orders[0]

	flagged, err := f.svc.RefreshShortageFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, flagged)

	// приёмка уменьшилась: 300 соли на два заказа по 210
	require.NoError(t, f.st.PutStockUnit(ctx, storage.StockUnit{ID: "P-SALT", ProductName: "Salt", Quantity: d("300")}))

	flagged, err = f.svc.RefreshShortageFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, flagged)

	for _, id := range []int64{a.ID, b.ID} {
		o, err := f.svc.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.True(t, o.HasShortages)
	}
}

func TestOverview(t *testing.T) {
	f := newFixture(t, "300")
	f.create(t, "1000", day, false)
	f.create(t, "1000", day.AddDate(0, 0, 1), true)

	ov, err := f.svc.Overview(context.Background())
	require.NoError(t, err)

	require.Len(t, ov.Rows, 2)
	assert.Equal(t, "Mieszanka", ov.Rows[0].RecipeName)
	assert.True(t, d("200").Equal(ov.Rows[0].EstimatedMinutes))
	assert.True(t, d("200").Equal(ov.Workload.Used(day)))
	require.Len(t, ov.Shortages, 2)
	assert.Equal(t, "Salt", ov.Shortages[0].ProductName)
}

func TestPlanBatches(t *testing.T) {
	batches, err := PlanBatches(storage.KindAgro, d("1000"), &storage.AgroRun{MixerCapacityKg: d("400")}, nil)
	require.NoError(t, err)
	assert.Len(t, batches, 3)

	batches, err = PlanBatches(storage.KindAgro, d("800"), &storage.AgroRun{MixerCapacityKg: d("400")}, nil)
	require.NoError(t, err)
	assert.Len(t, batches, 2)

	_, err = PlanBatches(storage.KindPsd, d("800"), nil, nil)
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	batches, err = PlanBatches(storage.KindAgro, d("400000"), &storage.AgroRun{MixerCapacityKg: d("400")}, nil)
	require.NoError(t, err)
	assert.Len(t, batches, MaxBatches)

	// крошечный смеситель дал бы число партий за пределами int
	_, err = PlanBatches(storage.KindAgro, d("1000"), &storage.AgroRun{MixerCapacityKg: d("0.0000000000000000001")}, nil)
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	_, err = PlanBatches(storage.KindAgro, d("400001"), &storage.AgroRun{MixerCapacityKg: d("400")}, nil)
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	_, err = PlanBatches(storage.KindPsd, d("800"), nil, &storage.PsdTask{BatchCount: MaxBatches + 1})
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	assert.Equal(t, 2, partBatchCount(4, d("1400"), d("2000"))-1)
	assert.Equal(t, 1, partBatchCount(4, d("1"), d("2000")))
}
