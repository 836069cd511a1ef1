package response

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prod-planner/internal/apperr"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Validation("x", "bad"), http.StatusBadRequest},
		{&apperr.InvalidRecipeError{RecipeID: 1, Reason: "zero"}, http.StatusBadRequest},
		{&FieldsError{Fields: map[string]string{"kind": "is required"}}, http.StatusBadRequest},
		{fmt.Errorf("op: %w", apperr.ErrNotFound), http.StatusNotFound},
		{&apperr.DuplicateOrderError{BatchID: "b", ExistingID: "a"}, http.StatusConflict},
		{&apperr.StaleCheckError{Reason: "changed"}, http.StatusConflict},
		{apperr.Incomplete("complete", "nirs"), http.StatusUnprocessableEntity},
		{&apperr.DrawError{ProductName: "Sól", Err: errors.New("empty")}, http.StatusBadGateway},
		{errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}

func TestFail_Duplicate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rr := httptest.NewRecorder()

	Fail(rr, req, slog.Default(), "test", fmt.Errorf("op: %w", &apperr.DuplicateOrderError{BatchID: "b-1", ExistingID: "adj-7"}))

	assert.Equal(t, http.StatusConflict, rr.Code)

	var resp Response
	require.NoError(t, render.DecodeJSON(rr.Body, &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, apperr.KindDuplicate, resp.Kind)
	assert.Equal(t, "adj-7", resp.ExistingID)
}

func TestFail_InternalErrorHidden(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	Fail(rr, req, slog.Default(), "test", errors.New("dial tcp 10.0.0.1:3306: refused"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "10.0.0.1")
}

func TestDecode_Validation(t *testing.T) {
	var dst struct {
		Kind string `json:"kind" validate:"required,oneof=agro psd"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"kind":"xyz"}`))
	err := Decode(req, &dst)

	var fe *FieldsError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Fields["kind"], "agro psd")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	err = Decode(req, &dst)
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))
}

func TestIDParam(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "42")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	id, err := IDParam(req, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	rctx.URLParams = chi.RouteParams{}
	rctx.URLParams.Add("id", "abc")
	_, err = IDParam(req, "id")
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("planned_date", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Day())

	_, err = ParseDate("planned_date", "02.03.2026")
	assert.Error(t, err)
}
