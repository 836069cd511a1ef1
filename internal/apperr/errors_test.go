package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrKind
	}{
		{"nil", nil, ""},
		{"validation", Validation("container_id", "bad format"), KindValidation},
		{"wrapped validation", fmt.Errorf("op: %w", Validation("", "x")), KindValidation},
		{"recipe", &InvalidRecipeError{RecipeID: 1, Reason: "zero"}, KindInvalidRecipe},
		{"duplicate", &DuplicateOrderError{BatchID: "b", ExistingID: "a"}, KindDuplicate},
		{"incomplete", Incomplete("complete batch", "nirs"), KindIncomplete},
		{"draw", &DrawError{ProductName: "Mąka", Err: errors.New("empty pallet")}, KindDraw},
		{"stale", &StaleCheckError{Reason: "stock changed"}, KindStale},
		{"not found", fmt.Errorf("storage: %w", ErrNotFound), KindNotFound},
		{"other", errors.New("boom"), KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Kind(tc.err))
		})
	}
}

func TestIncompleteError_ListsItems(t *testing.T) {
	err := Incomplete("start processing", "Mąka: picked 40 of 50", "Sól: picked 0 of 2")
	assert.Contains(t, err.Error(), "Mąka: picked 40 of 50")
	assert.Contains(t, err.Error(), "Sól: picked 0 of 2")
}

func TestDrawError_Unwrap(t *testing.T) {
	cause := errors.New("insufficient weight")
	err := fmt.Errorf("op: %w", &DrawError{ProductName: "Sól", Err: cause})
	assert.ErrorIs(t, err, cause)
}
