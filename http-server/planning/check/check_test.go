package check

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"prod-planner/internal/service/capacity"
	"prod-planner/internal/service/planning"
	"prod-planner/internal/service/reservation"
)

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Check(ctx context.Context, in planning.CheckInput) (planning.CheckResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(planning.CheckResult), args.Error(1)
}

func TestCheckOrder_SplitProposal(t *testing.T) {
	checker := new(MockChecker)
	result := planning.CheckResult{
		Stock: reservation.Report{GloballySufficient: true},
		Capacity: capacity.Decision{
			Fits: false,
			Parts: []capacity.Part{
				{BatchSizeKg: decimal.NewFromInt(4000)},
				{BatchSizeKg: decimal.NewFromInt(2000)},
			},
		},
	}
	checker.On("Check", mock.Anything, mock.MatchedBy(func(in planning.CheckInput) bool {
		return in.RecipeID == 3 && in.TargetQuantityKg.Equal(decimal.NewFromInt(6000)) &&
			in.PlannedDate.Format("2006-01-02") == "2026-03-02" && in.ExcludeID == 0
	})).Return(result, nil)

	body := `{"recipe_id": 3, "target_quantity_kg": 6000, "planned_date": "2026-03-02"}`
	req := httptest.NewRequest(http.MethodPost, "/api/planning/check", strings.NewReader(body))
	rr := httptest.NewRecorder()

	CheckOrder(slog.Default(), checker).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Resp
	require.NoError(t, render.DecodeJSON(rr.Body, &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "daily capacity exceeded, split proposed", resp.Message)
	require.Len(t, resp.Result.Capacity.Parts, 2)
	assert.True(t, resp.Result.Capacity.Parts[0].BatchSizeKg.Equal(decimal.NewFromInt(4000)))
	checker.AssertExpectations(t)
}

func TestCheckOrder_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"broken json", `{`},
		{"missing recipe", `{"target_quantity_kg": 10, "planned_date": "2026-03-02"}`},
		{"bad date", `{"recipe_id": 1, "target_quantity_kg": 10, "planned_date": "02.03.2026"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checker := new(MockChecker)
			req := httptest.NewRequest(http.MethodPost, "/api/planning/check", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			CheckOrder(slog.Default(), checker).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			checker.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
		})
	}
}
