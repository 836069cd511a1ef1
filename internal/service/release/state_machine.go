package release

import (
	"fmt"
	"time"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

// Переходы по каждой оси подтверждения. Возврат в pending разрешён всегда,
// чтобы лаборант мог исправить ошибку.
var (
	nirsTransitions = map[storage.NirsStatus][]storage.NirsStatus{
		storage.NirsPending: {storage.NirsOK, storage.NirsNok},
		storage.NirsOK:      {storage.NirsPending},
		storage.NirsNok:     {storage.NirsPending},
	}
	samplingTransitions = map[storage.SamplingStatus][]storage.SamplingStatus{
		storage.SamplingPending: {storage.SamplingOK},
		storage.SamplingOK:      {storage.SamplingPending},
	}
)

func Normalize(b *storage.Batch) {
	if b.Status == "" {
		b.Status = storage.BatchPending
	}
	if b.Confirmation.Nirs == "" {
		b.Confirmation.Nirs = storage.NirsPending
	}
	if b.Confirmation.Sampling == "" {
		b.Confirmation.Sampling = storage.SamplingPending
	}
}

// MissingWeighings - ингредиенты рецептуры, взвешивание которых ещё не закончено.
func MissingWeighings(recipe storage.Recipe, b storage.Batch) []string {
	done := make(map[string]bool, len(b.WeighingFinished))
	for _, name := range b.WeighingFinished {
		done[name] = true
	}

	var missing []string
	for _, name := range recipe.IngredientNames() {
		if !done[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// EnsureConfirmationStage - партия в работе и всё взвешено.
func EnsureConfirmationStage(recipe storage.Recipe, b storage.Batch) error {
	if b.Status != storage.BatchOngoing {
		return apperr.Validation("batch", "batch %d is %s, confirmations need an ongoing batch", b.BatchNumber, b.Status)
	}
	if missing := MissingWeighings(recipe, b); len(missing) > 0 {
		items := make([]string, 0, len(missing))
		for _, name := range missing {
			items = append(items, "weighing not finished: "+name)
		}
		return &apperr.IncompleteError{Action: "enter lab confirmation", Items: items}
	}
	return nil
}

// NirsGate - то, что известно о корректировках партии на момент смены nirs.
type NirsGate struct {
	ActiveAdjustmentID string
	// LastAdjustmentCompletedAt - последнее завершение корректировки по партии.
	LastAdjustmentCompletedAt *time.Time
	// Correction снимает ошибочный nok без корректировки, только nok -> pending.
	Correction bool
	At         time.Time
}

// SetNirs меняет результат анализа. Выйти из nok нельзя, пока открыта корректировка.
// После nok результат ok принимается, только если корректировка завершена позже nok.
func SetNirs(b *storage.Batch, recipe storage.Recipe, to storage.NirsStatus, gate NirsGate) error {
	Normalize(b)
	if err := EnsureConfirmationStage(recipe, *b); err != nil {
		return err
	}

	from := b.Confirmation.Nirs
	if gate.Correction && (from != storage.NirsNok || to != storage.NirsPending) {
		return apperr.Validation("correction", "a correction only reverts nok to pending, got %s -> %s", from, to)
	}
	if from == to {
		return nil
	}
	if !allowed(nirsTransitions[from], to) {
		return apperr.Validation("nirs", "transition %s -> %s is not allowed", from, to)
	}
	if from == storage.NirsNok && gate.ActiveAdjustmentID != "" {
		return apperr.Incomplete("leave nirs nok", fmt.Sprintf("adjustment order %s is not completed", gate.ActiveAdjustmentID))
	}

	nokAt := b.Confirmation.NirsNokAt
	switch {
	case to == storage.NirsNok:
		at := gate.At
		nokAt = &at
	case gate.Correction:
		nokAt = nil
	case to == storage.NirsOK && nokAt != nil:
		done := gate.LastAdjustmentCompletedAt
		if done == nil || done.Before(*nokAt) {
			return apperr.Incomplete("confirm nirs ok",
				"no adjustment completed since nirs nok at "+nokAt.Format(time.RFC3339))
		}
		nokAt = nil
	}

	b.Confirmation.Nirs = to
	b.Confirmation.NirsNokAt = nokAt
	return nil
}

func SetSampling(b *storage.Batch, recipe storage.Recipe, to storage.SamplingStatus) error {
	Normalize(b)
	if err := EnsureConfirmationStage(recipe, *b); err != nil {
		return err
	}

	from := b.Confirmation.Sampling
	if from == to {
		return nil
	}
	if !allowed(samplingTransitions[from], to) {
		return apperr.Validation("sampling", "transition %s -> %s is not allowed", from, to)
	}

	b.Confirmation.Sampling = to
	return nil
}

// Complete закрывает партию только при nirs=ok и sampling=ok.
func Complete(b *storage.Batch, at time.Time) error {
	Normalize(b)
	if b.Status != storage.BatchOngoing {
		return apperr.Validation("batch", "batch %d is %s, only an ongoing batch can be completed", b.BatchNumber, b.Status)
	}

	var missing []string
	if b.Confirmation.Nirs != storage.NirsOK {
		missing = append(missing, "nirs is "+string(b.Confirmation.Nirs))
	}
	if b.Confirmation.Sampling != storage.SamplingOK {
		missing = append(missing, "sampling is "+string(b.Confirmation.Sampling))
	}
	if len(missing) > 0 {
		return &apperr.IncompleteError{Action: "complete batch", Items: missing}
	}

	b.Status = storage.BatchCompleted
	b.EndTime = &at
	return nil
}

// CanSpawnAdjustment - корректировку по анализу можно создать только из nirs=nok.
func CanSpawnAdjustment(b storage.Batch) error {
	Normalize(&b)
	if b.Status == storage.BatchCompleted {
		return apperr.Validation("batch", "batch %d is already completed", b.BatchNumber)
	}
	if b.Confirmation.Nirs != storage.NirsNok {
		return apperr.Incomplete("create adjustment order", "nirs is "+string(b.Confirmation.Nirs)+", expected nok")
	}
	return nil
}

// ReadyForFinishedGoods - партию можно передавать на упаковку.
func ReadyForFinishedGoods(b storage.Batch) bool {
	return b.Status == storage.BatchCompleted
}

func allowed[T comparable](targets []T, to T) bool {
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}
