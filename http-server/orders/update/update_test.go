package update

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"prod-planner/http-server/orders/save"
	"prod-planner/internal/apperr"
	"prod-planner/internal/service/planning"
	"prod-planner/internal/storage"
)

type MockUpdater struct {
	mock.Mock
}

func (m *MockUpdater) UpdateOrder(ctx context.Context, id int64, in planning.OrderInput, accept bool) (planning.CommitResult, error) {
	args := m.Called(ctx, id, in, accept)
	return args.Get(0).(planning.CommitResult), args.Error(1)
}

func (m *MockUpdater) PauseOrder(ctx context.Context, id int64) (storage.ProductionOrder, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(storage.ProductionOrder), args.Error(1)
}

func (m *MockUpdater) ResumeOrder(ctx context.Context, id int64) (storage.ProductionOrder, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(storage.ProductionOrder), args.Error(1)
}

func newRouter(u *MockUpdater) *chi.Mux {
	r := chi.NewRouter()
	r.Put("/api/orders/{id}", UpdateOrder(slog.Default(), u))
	r.Post("/api/orders/{id}/pause", PauseOrder(slog.Default(), u))
	r.Post("/api/orders/{id}/resume", ResumeOrder(slog.Default(), u))
	return r
}

func TestUpdateOrder(t *testing.T) {
	u := new(MockUpdater)
	u.On("UpdateOrder", mock.Anything, int64(3), mock.MatchedBy(func(in planning.OrderInput) bool {
		return in.Kind == storage.KindPsd && in.BatchCount == 4
	}), false).Return(planning.CommitResult{Committed: true, Orders: []storage.ProductionOrder{{ID: 3}}}, nil)

	body := `{"kind":"psd","recipe_id":1,"target_quantity_kg":800,"planned_date":"2026-03-05","batch_count":4,"shelf_life_months":6}`
	req := httptest.NewRequest(http.MethodPut, "/api/orders/3", strings.NewReader(body))
	rr := httptest.NewRecorder()
	newRouter(u).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp save.Resp
	require.NoError(t, render.DecodeJSON(rr.Body, &resp))
	assert.True(t, resp.Success)
	u.AssertExpectations(t)
}

func TestUpdateOrder_NotPlanned(t *testing.T) {
	u := new(MockUpdater)
	u.On("UpdateOrder", mock.Anything, int64(3), mock.Anything, false).
		Return(planning.CommitResult{}, apperr.Validation("status", "only planned orders can be edited"))

	body := `{"kind":"psd","recipe_id":1,"target_quantity_kg":800,"planned_date":"2026-03-05","batch_count":4,"shelf_life_months":6}`
	req := httptest.NewRequest(http.MethodPut, "/api/orders/3", strings.NewReader(body))
	rr := httptest.NewRecorder()
	newRouter(u).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPauseResume(t *testing.T) {
	u := new(MockUpdater)
	u.On("PauseOrder", mock.Anything, int64(9)).Return(storage.ProductionOrder{ID: 9, Status: storage.OrderPaused}, nil)
	u.On("ResumeOrder", mock.Anything, int64(9)).Return(storage.ProductionOrder{ID: 9, Status: storage.OrderOngoing}, nil)

	rr := httptest.NewRecorder()
	newRouter(u).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/orders/9/pause", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp StatusResp
	require.NoError(t, render.DecodeJSON(rr.Body, &resp))
	assert.Equal(t, storage.OrderPaused, resp.Order.Status)

	rr = httptest.NewRecorder()
	newRouter(u).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/orders/9/resume", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	u.AssertExpectations(t)
}
