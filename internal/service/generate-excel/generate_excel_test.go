package generate_excel

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"prod-planner/internal/service/capacity"
	"prod-planner/internal/service/planning"
	"prod-planner/internal/service/reservation"
	"prod-planner/internal/storage"
)

type MockOverviewSource struct {
	mock.Mock
}

func (m *MockOverviewSource) Overview(ctx context.Context) (planning.Overview, error) {
	args := m.Called(ctx)
	return args.Get(0).(planning.Overview), args.Error(1)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func overview() planning.Overview {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	workload := capacity.Workload{}
	workload.Add(day, d("200"))

	return planning.Overview{
		CapacityMinutes: d("480"),
		Workload:        workload,
		Rows: []planning.PlanRow{
			{Code: "ZLEAGR00001", Kind: storage.KindAgro, RecipeName: "Mieszanka", PlannedDate: day,
				TargetQuantityKg: d("1000"), EstimatedMinutes: d("200"), Status: storage.OrderPlanned, HasShortages: true, Batches: 3},
			{Code: "ZLEPSD00001", Kind: storage.KindPsd, RecipeName: "Mieszanka", PlannedDate: day.AddDate(0, 1, 0),
				TargetQuantityKg: d("500"), EstimatedMinutes: d("100"), Status: storage.OrderPlanned, Batches: 2},
		},
		Shortages: []planning.ShortageRow{
			{OrderCode: "ZLEAGR00001", Shortage: reservation.Shortage{
				ProductName: "Salt", Unit: storage.UnitKg, Required: d("210"), Available: d("90"), Missing: d("120"),
			}},
		},
	}
}

func TestGenerateExcel(t *testing.T) {
	source := new(MockOverviewSource)
	source.On("Overview", mock.Anything).Return(overview(), nil)

	svc := NewGenerateService(source)
	data, err := svc.GenerateExcel(context.Background(), ReportFilter{
		From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{planSheet, shortageSheet}, f.GetSheetList())

	rows, err := f.GetRows(planSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ZLEAGR00001", rows[1][0])
	assert.Equal(t, "2026-03-09", rows[1][3])
	assert.Equal(t, "200 / 480", rows[1][6])
	assert.Equal(t, "TAK", rows[1][9])

	shortages, err := f.GetRows(shortageSheet)
	require.NoError(t, err)
	require.Len(t, shortages, 2)
	assert.Equal(t, "Salt", shortages[1][1])
	assert.Equal(t, "120", shortages[1][5])
}

func TestGenerateExcel_SourceError(t *testing.T) {
	source := new(MockOverviewSource)
	source.On("Overview", mock.Anything).Return(planning.Overview{}, errors.New("db down"))

	_, err := NewGenerateService(source).GenerateExcel(context.Background(), ReportFilter{})
	assert.Error(t, err)
}
