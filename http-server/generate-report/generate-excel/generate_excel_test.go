package generate_excel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	generate "prod-planner/internal/service/generate-excel"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateExcel(ctx context.Context, filter generate.ReportFilter) ([]byte, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func TestGenerateReportExcel_Success(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("GenerateExcel", mock.Anything, mock.MatchedBy(func(f generate.ReportFilter) bool {
		return f.From.Format("2006-01-02") == "2026-03-01" && f.To.Format("2006-01-02") == "2026-03-31"
	})).Return([]byte("xlsx"), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/report/excel?from=2026-03-01&to=2026-03-31", nil)
	rr := httptest.NewRecorder()
	GenerateReportExcel(slog.Default(), gen).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment; filename=Plan_")
	assert.Equal(t, "xlsx", rr.Body.String())
	gen.AssertExpectations(t)
}

func TestGenerateReportExcel_BadDate(t *testing.T) {
	gen := new(MockGenerator)

	req := httptest.NewRequest(http.MethodGet, "/api/report/excel?from=01.03.2026", nil)
	rr := httptest.NewRecorder()
	GenerateReportExcel(slog.Default(), gen).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	gen.AssertNotCalled(t, "GenerateExcel", mock.Anything, mock.Anything)
}

func TestGenerateReportExcel_Error(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("GenerateExcel", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	req := httptest.NewRequest(http.MethodGet, "/api/report/excel", nil)
	rr := httptest.NewRecorder()
	GenerateReportExcel(slog.Default(), gen).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
