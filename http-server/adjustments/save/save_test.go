package save

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"prod-planner/http-server/response"
	"prod-planner/internal/apperr"
	"prod-planner/internal/service/adjustment"
	"prod-planner/internal/storage"
)

type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) Create(ctx context.Context, req adjustment.CreateRequest) (storage.AdjustmentOrder, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(storage.AdjustmentOrder), args.Error(1)
}

const body = `{
	"production_order_id": 5,
	"batch_id": "b-1",
	"reason": "nirs_out_of_spec",
	"materials": [{"product_name": "Mąka", "quantity_kg": 50}]
}`

func TestCreateAdjustment_Created(t *testing.T) {
	creator := new(MockCreator)
	creator.On("Create", mock.Anything, mock.MatchedBy(func(req adjustment.CreateRequest) bool {
		return req.ProductionOrderID == 5 && req.BatchID != nil && *req.BatchID == "b-1" &&
			req.Reason == storage.ReasonNirsOutOfSpec && len(req.Materials) == 1
	})).Return(storage.AdjustmentOrder{ID: "adj-1", Status: storage.AdjustmentPlanned}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/adjustments", strings.NewReader(body))
	rr := httptest.NewRecorder()
	CreateAdjustment(slog.Default(), creator).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp Resp
	require.NoError(t, render.DecodeJSON(rr.Body, &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "adj-1", resp.Adjustment.ID)
	creator.AssertExpectations(t)
}

func TestCreateAdjustment_Duplicate(t *testing.T) {
	creator := new(MockCreator)
	creator.On("Create", mock.Anything, mock.Anything).
		Return(storage.AdjustmentOrder{}, &apperr.DuplicateOrderError{BatchID: "b-1", ExistingID: "adj-0"})

	req := httptest.NewRequest(http.MethodPost, "/api/adjustments", strings.NewReader(body))
	rr := httptest.NewRecorder()
	CreateAdjustment(slog.Default(), creator).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)

	var resp response.Response
	require.NoError(t, render.DecodeJSON(rr.Body, &resp))
	assert.Equal(t, "adj-0", resp.ExistingID)
}

func TestCreateAdjustment_UnknownReason(t *testing.T) {
	creator := new(MockCreator)

	bad := strings.Replace(body, "nirs_out_of_spec", "bad_weather", 1)
	req := httptest.NewRequest(http.MethodPost, "/api/adjustments", strings.NewReader(bad))
	rr := httptest.NewRecorder()
	CreateAdjustment(slog.Default(), creator).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	creator.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
