package response

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"prod-planner/internal/apperr"
)

// Response - общая часть любого ответа на изменяющий запрос.
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Kind    apperr.ErrKind    `json:"kind,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Items   []string          `json:"items,omitempty"`
	// ExistingID - незавершённая корректировка, к которой нужно перейти.
	ExistingID string `json:"existing_id,omitempty"`
}

func OK(message string) Response {
	return Response{Success: true, Message: message}
}

func Error(message string) Response {
	return Response{Success: false, Message: message}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode читает JSON тела и проверяет теги validate.
func Decode(r *http.Request, dst any) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return apperr.Validation("body", "invalid JSON: %v", err)
	}
	return Validate(dst)
}

func Validate(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("body", "%v", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe)] = fieldMessage(fe)
	}
	return &FieldsError{Fields: fields}
}

// FieldsError - ошибки по полям запроса.
type FieldsError struct {
	Fields map[string]string
}

func (e *FieldsError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, m := range e.Fields {
		parts = append(parts, f+": "+m)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldName(fe validator.FieldError) string {
	field := fe.Field()
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "datetime":
		return "must be a date in format " + fe.Param()
	case "dive":
		return "has invalid items"
	default:
		return "is invalid"
	}
}

// Status - HTTP-код для вида ошибки.
func Status(err error) int {
	var fe *FieldsError
	if errors.As(err, &fe) {
		return http.StatusBadRequest
	}

	switch apperr.Kind(err) {
	case apperr.KindValidation, apperr.KindInvalidRecipe:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDuplicate, apperr.KindStale:
		return http.StatusConflict
	case apperr.KindIncomplete:
		return http.StatusUnprocessableEntity
	case apperr.KindDraw:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Fail пишет ошибку в лог и отвечает {success: false}. Внутренние ошибки
// наружу не раскрываются.
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, err error) {
	status := Status(err)

	resp := Error(err.Error())
	resp.Kind = apperr.Kind(err)

	var fe *FieldsError
	if errors.As(err, &fe) {
		resp.Kind = apperr.KindValidation
		resp.Fields = fe.Fields
	}
	var inc *apperr.IncompleteError
	if errors.As(err, &inc) {
		resp.Items = inc.Items
	}
	var dup *apperr.DuplicateOrderError
	if errors.As(err, &dup) {
		resp.ExistingID = dup.ExistingID
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", slog.String("op", op), slog.String("error", err.Error()))
		resp.Message = "internal error"
	} else {
		log.Warn("request rejected", slog.String("op", op), slog.String("error", err.Error()))
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

// IDParam - числовой параметр пути.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation(name, "invalid id %q", raw)
	}
	return id, nil
}

const DateLayout = "2006-01-02"

// ParseDate разбирает дату вида 2006-01-02 в UTC.
func ParseDate(field, raw string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, apperr.Validation(field, "invalid date %q, expected %s", raw, DateLayout)
	}
	return t, nil
}
