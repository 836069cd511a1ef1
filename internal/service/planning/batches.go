package planning

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

// MaxBatches ограничивает число партий одного заказа.
const MaxBatches = 1000

// PlanBatches режет заказ на партии по виду заказа.
// AGRO: ceil(цель / объём смесителя). PSD: число партий задано планировщиком.
func PlanBatches(kind storage.OrderKind, targetKg decimal.Decimal, agro *storage.AgroRun, psd *storage.PsdTask) ([]storage.Batch, error) {
	var n int
	switch kind {
	case storage.KindAgro:
		if agro == nil || !agro.MixerCapacityKg.IsPositive() {
			return nil, apperr.Validation("mixer_capacity_kg", "AGRO run needs a positive mixer capacity")
		}
		count := agroBatchCount(targetKg, agro.MixerCapacityKg)
		if count.GreaterThan(decimal.NewFromInt(MaxBatches)) {
			return nil, apperr.Validation("mixer_capacity_kg",
				"%s kg at %s kg per mixer gives %s batches, max %d", targetKg, agro.MixerCapacityKg, count, MaxBatches)
		}
		n = int(count.IntPart())
	case storage.KindPsd:
		if psd == nil || psd.BatchCount < 1 {
			return nil, apperr.Validation("batch_count", "PSD task needs at least one batch")
		}
		if psd.BatchCount > MaxBatches {
			return nil, apperr.Validation("batch_count", "%d batches requested, max %d", psd.BatchCount, MaxBatches)
		}
		n = psd.BatchCount
	default:
		return nil, apperr.Validation("kind", "unknown order kind %q", kind)
	}
	if n < 1 {
		n = 1
	}

	batches := make([]storage.Batch, 0, n)
	for i := 1; i <= n; i++ {
		batches = append(batches, storage.Batch{
			ID:          uuid.NewString(),
			BatchNumber: i,
			Status:      storage.BatchPending,
			Confirmation: storage.ConfirmationStatus{
				Nirs:     storage.NirsPending,
				Sampling: storage.SamplingPending,
			},
			WeighingFinished: []string{},
		})
	}
	return batches, nil
}

func agroBatchCount(targetKg, mixerKg decimal.Decimal) decimal.Decimal {
	return targetKg.Div(mixerKg).Ceil()
}

func payloads(in OrderInput) (*storage.AgroRun, *storage.PsdTask) {
	switch in.Kind {
	case storage.KindAgro:
		return &storage.AgroRun{MixerCapacityKg: in.MixerCapacityKg}, nil
	case storage.KindPsd:
		return nil, &storage.PsdTask{BatchCount: in.BatchCount}
	}
	return nil, nil
}

// partBatchCount делит партии PSD пропорционально части, минимум одна.
func partBatchCount(total int, partKg, targetKg decimal.Decimal) int {
	n := int(decimal.NewFromInt(int64(total)).Mul(partKg).Div(targetKg).Ceil().IntPart())
	if n < 1 {
		return 1
	}
	return n
}
