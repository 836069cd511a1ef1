package remove

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"prod-planner/internal/apperr"
)

type MockDeleter struct {
	mock.Mock
}

func (m *MockDeleter) DeleteOrder(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func serve(d OrderDeleter, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Delete("/api/orders/{id}", DeleteOrder(slog.Default(), d))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, path, nil))
	return rr
}

func TestDeleteOrder(t *testing.T) {
	d := new(MockDeleter)
	d.On("DeleteOrder", mock.Anything, int64(4)).Return(nil)

	rr := serve(d, "/api/orders/4")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":true`)
	d.AssertExpectations(t)
}

func TestDeleteOrder_Missing(t *testing.T) {
	d := new(MockDeleter)
	d.On("DeleteOrder", mock.Anything, int64(4)).Return(fmt.Errorf("storage: %w", apperr.ErrNotFound))

	rr := serve(d, "/api/orders/4")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
