package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound возвращается хранилищем, когда записи нет.
var ErrNotFound = errors.New("not found")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvalidRecipeError - рецептура не позволяет посчитать потребность или время.
type InvalidRecipeError struct {
	RecipeID int64
	Reason   string
}

func (e *InvalidRecipeError) Error() string {
	return fmt.Sprintf("invalid recipe %d: %s", e.RecipeID, e.Reason)
}

// DuplicateOrderError - для партии уже есть незавершённая корректировка.
type DuplicateOrderError struct {
	BatchID    string
	ExistingID string
}

func (e *DuplicateOrderError) Error() string {
	return fmt.Sprintf("batch %s already has an active adjustment order %s", e.BatchID, e.ExistingID)
}

// IncompleteError - переход заблокирован невыполненными условиями.
type IncompleteError struct {
	Action string
	Items  []string
}

func (e *IncompleteError) Error() string {
	if len(e.Items) == 0 {
		return fmt.Sprintf("%s: preconditions not met", e.Action)
	}
	return fmt.Sprintf("%s: preconditions not met: %s", e.Action, strings.Join(e.Items, "; "))
}

func Incomplete(action string, items ...string) error {
	return &IncompleteError{Action: action, Items: items}
}

// DrawError оборачивает отказ регистратора списаний.
type DrawError struct {
	ProductName string
	Err         error
}

func (e *DrawError) Error() string {
	return fmt.Sprintf("draw of %s failed: %v", e.ProductName, e.Err)
}

func (e *DrawError) Unwrap() error { return e.Err }

// StaleCheckError - повторная проверка при записи разошлась с тем, что видел планировщик.
type StaleCheckError struct {
	Reason string
}

func (e *StaleCheckError) Error() string {
	return "stale planning check: " + e.Reason
}

type ErrKind string

const (
	KindValidation    ErrKind = "validation"
	KindInvalidRecipe ErrKind = "invalid_recipe"
	KindNotFound      ErrKind = "not_found"
	KindDuplicate     ErrKind = "duplicate"
	KindIncomplete    ErrKind = "incomplete"
	KindDraw          ErrKind = "draw"
	KindStale         ErrKind = "stale"
	KindInternal      ErrKind = "internal"
)

func Kind(err error) ErrKind {
	var (
		validation *ValidationError
		recipe     *InvalidRecipeError
		duplicate  *DuplicateOrderError
		incomplete *IncompleteError
		draw       *DrawError
		stale      *StaleCheckError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &recipe):
		return KindInvalidRecipe
	case errors.As(err, &duplicate):
		return KindDuplicate
	case errors.As(err, &incomplete):
		return KindIncomplete
	case errors.As(err, &draw):
		return KindDraw
	case errors.As(err, &stale):
		return KindStale
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
