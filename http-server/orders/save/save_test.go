package save

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

	"prod-planner/internal/apperr"
	"prod-planner/internal/service/capacity"
	"prod-planner/internal/service/planning"
	"prod-planner/internal/storage"
)

type MockOrderCreator struct {
	mock.Mock
}

func (m *MockOrderCreator) CreateOrder(ctx context.Context, in planning.OrderInput, accept bool) (planning.CommitResult, error) {
	args := m.Called(ctx, in, accept)
	return args.Get(0).(planning.CommitResult), args.Error(1)
}

func (m *MockOrderCreator) ConfirmSplit(ctx context.Context, in planning.OrderInput, parts []capacity.Part, accept bool) (planning.CommitResult, error) {
	args := m.Called(ctx, in, parts, accept)
	return args.Get(0).(planning.CommitResult), args.Error(1)
}

const agroBody = `{
	"kind": "agro",
	"recipe_id": 1,
	"target_quantity_kg": 1000,
	"planned_date": "2026-03-02",
	"shelf_life_months": 6,
	"mixer_capacity_kg": 500,
	"accept_shortages": true
}`

func TestCreateOrder_Created(t *testing.T) {
	creator := new(MockOrderCreator)
	creator.On("CreateOrder", mock.Anything, mock.MatchedBy(func(in planning.OrderInput) bool {
		return in.Kind == storage.KindAgro && in.RecipeID == 1 &&
			in.TargetQuantityKg.Equal(decimal.NewFromInt(1000)) && in.MixerCapacityKg.Equal(decimal.NewFromInt(500))
	}), true).Return(planning.CommitResult{
		Committed: true,
		Orders:    []storage.ProductionOrder{{ID: 7, Code: "ZLEAGR00001"}},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(agroBody))
	rr := httptest.NewRecorder()
	CreateOrder(slog.Default(), creator).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp Resp
	require.NoError(t, render.DecodeJSON(rr.Body, &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Result.Orders, 1)
	assert.Equal(t, "ZLEAGR00001", resp.Result.Orders[0].Code)
	creator.AssertExpectations(t)
}

func TestCreateOrder_RejectedAtCommit(t *testing.T) {
	creator := new(MockOrderCreator)
	creator.On("CreateOrder", mock.Anything, mock.Anything, true).Return(planning.CommitResult{
		Committed: false,
		Reason:    "daily capacity exceeded, confirm the split proposal",
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(agroBody))
	rr := httptest.NewRecorder()
	CreateOrder(slog.Default(), creator).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Resp
	require.NoError(t, render.DecodeJSON(rr.Body, &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "split")
}

func TestCreateOrder_UnknownKind(t *testing.T) {
	creator := new(MockOrderCreator)

	body := strings.Replace(agroBody, `"agro"`, `"xyz"`, 1)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rr := httptest.NewRecorder()
	CreateOrder(slog.Default(), creator).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	creator.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmSplit_Stale(t *testing.T) {
	creator := new(MockOrderCreator)
	creator.On("ConfirmSplit", mock.Anything, mock.Anything, mock.MatchedBy(func(parts []capacity.Part) bool {
		return len(parts) == 2 && parts[1].BatchSizeKg.Equal(decimal.NewFromInt(600)) &&
			parts[1].Date.Format("2006-01-02") == "2026-03-03"
	}), false).Return(planning.CommitResult{}, &apperr.StaleCheckError{Reason: "split proposal changed"})

	body := `{
		"kind": "psd", "recipe_id": 1, "target_quantity_kg": 2000, "planned_date": "2026-03-02", "batch_count": 2, "shelf_life_months": 6,
		"parts": [
			{"date": "2026-03-02", "batch_size_kg": 1400},
			{"date": "2026-03-03", "batch_size_kg": 600}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders/split", strings.NewReader(body))
	rr := httptest.NewRecorder()
	ConfirmSplit(slog.Default(), creator).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	creator.AssertExpectations(t)
}

func TestConfirmSplit_NeedsParts(t *testing.T) {
	creator := new(MockOrderCreator)

	body := `{
		"kind": "psd", "recipe_id": 1, "target_quantity_kg": 2000, "planned_date": "2026-03-02", "batch_count": 2, "shelf_life_months": 6,
		"parts": []
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders/split", strings.NewReader(body))
	rr := httptest.NewRecorder()
	ConfirmSplit(slog.Default(), creator).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	creator.AssertNotCalled(t, "ConfirmSplit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// Заполненный плановый день переносит заказ целиком: предложение из одной части.
func TestConfirmSplit_SinglePart(t *testing.T) {
	creator := new(MockOrderCreator)
	creator.On("ConfirmSplit", mock.Anything, mock.Anything, mock.MatchedBy(func(parts []capacity.Part) bool {
		return len(parts) == 1 && parts[0].Date.Format("2006-01-02") == "2026-03-03"
	}), false).Return(planning.CommitResult{
		Committed: true,
		Orders:    []storage.ProductionOrder{{ID: 9, Code: "ZLEPSD00002", SplitGroup: "g-1"}},
	}, nil)

	body := `{
		"kind": "psd", "recipe_id": 1, "target_quantity_kg": 100, "planned_date": "2026-03-02", "batch_count": 1, "shelf_life_months": 6,
		"parts": [{"date": "2026-03-03", "batch_size_kg": 100}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders/split", strings.NewReader(body))
	rr := httptest.NewRecorder()
	ConfirmSplit(slog.Default(), creator).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	creator.AssertExpectations(t)
}

func TestCreateOrder_ShelfLifeRequired(t *testing.T) {
	creator := new(MockOrderCreator)

	body := strings.Replace(agroBody, `"shelf_life_months": 6`, `"shelf_life_months": 0`, 1)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rr := httptest.NewRecorder()
	CreateOrder(slog.Default(), creator).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	creator.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}
