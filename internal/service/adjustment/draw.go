package adjustment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

const (
	sourceStation = "station"
	sourcePallet  = "pallet"
)

// AutoDraw - станция дозирования отбирает весь остаток материала.
// Ожидание станции идёт вне координатора; отмена ctx ничего не записывает.
func (w *Workflow) AutoDraw(ctx context.Context, id, productName string) (storage.AdjustmentOrder, error) {
	const op = "adjustment.AutoDraw"

	a, err := w.storage.GetAdjustmentOrder(ctx, id)
	if err != nil {
		return storage.AdjustmentOrder{}, fmt.Errorf("%s: get %s: %w", op, id, err)
	}
	m, err := pickable(&a, productName)
	if err != nil {
		return storage.AdjustmentOrder{}, err
	}
	if _, err := remaining(*m); err != nil {
		return storage.AdjustmentOrder{}, err
	}

	if w.delay > 0 {
		timer := time.NewTimer(w.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			w.log.Info("auto draw cancelled", slog.String("id", id), slog.String("product", productName))
			return storage.AdjustmentOrder{}, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}

	return w.draw(ctx, id, productName, sourceStation, func(a *storage.AdjustmentOrder, m *storage.AdjustmentMaterial) (storage.Draw, error) {
		qty, err := remaining(*m)
		if err != nil {
			return storage.Draw{}, err
		}
		return storage.Draw{
			OrderID:      a.ProductionOrderID,
			BatchID:      a.BatchID,
			ProductName:  m.ProductName,
			Quantity:     qty,
			Unit:         storage.UnitKg,
			StationID:    w.stationID,
			IsAdjustment: true,
		}, nil
	})
}

// ManualDraw - оператор сканирует паллету и вводит набранный вес.
func (w *Workflow) ManualDraw(ctx context.Context, id, productName, palletID string, quantity decimal.Decimal) (storage.AdjustmentOrder, error) {
	const op = "adjustment.ManualDraw"

	if palletID == "" {
		return storage.AdjustmentOrder{}, apperr.Validation("pallet_id", "pallet id is required")
	}
	if !quantity.IsPositive() {
		return storage.AdjustmentOrder{}, apperr.Validation("quantity", "quantity must be positive")
	}

	return w.draw(ctx, id, productName, sourcePallet, func(a *storage.AdjustmentOrder, m *storage.AdjustmentMaterial) (storage.Draw, error) {
		unit, err := w.storage.GetStockUnit(ctx, palletID)
		if errors.Is(err, apperr.ErrNotFound) {
			return storage.Draw{}, apperr.Validation("pallet_id", "pallet %s not found", palletID)
		}
		if err != nil {
			return storage.Draw{}, fmt.Errorf("%s: get pallet %s: %w", op, palletID, err)
		}
		if unit.ProductName != m.ProductName {
			return storage.Draw{}, apperr.Validation("pallet_id",
				"scanned pallet %s holds %s, expected %s", palletID, unit.ProductName, m.ProductName)
		}
		if unit.IsBlocked {
			return storage.Draw{}, apperr.Validation("pallet_id",
				"pallet %s is blocked: %s", palletID, unit.BlockReason)
		}

		limit := MaxPickable(m.QuantityKg)
		if m.PickedQuantityKg.Add(quantity).GreaterThan(limit) {
			return storage.Draw{}, apperr.Validation("quantity",
				"drawing %s kg of %s exceeds the limit: picked %s, max %s", quantity, m.ProductName, m.PickedQuantityKg, limit)
		}

		return storage.Draw{
			OrderID:      a.ProductionOrderID,
			BatchID:      a.BatchID,
			ProductName:  m.ProductName,
			Quantity:     quantity,
			Unit:         storage.UnitKg,
			PalletID:     palletID,
			IsAdjustment: true,
		}, nil
	})
}

// draw повторяет проверки под координатором и отдаёт Recorder списание
// вместе с увеличенным набранным весом. Сбой или отмена не оставляют следов.
func (w *Workflow) draw(
	ctx context.Context,
	id, productName, source string,
	build func(a *storage.AdjustmentOrder, m *storage.AdjustmentMaterial) (storage.Draw, error),
) (storage.AdjustmentOrder, error) {
	const op = "adjustment.draw"

	var updated storage.AdjustmentOrder
	err := w.coord.Do(ctx, func(ctx context.Context) error {
		a, err := w.storage.GetAdjustmentOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: get %s: %w", op, id, err)
		}
		m, err := pickable(&a, productName)
		if err != nil {
			return err
		}

		d, err := build(&a, m)
		if err != nil {
			return err
		}

		m.PickedQuantityKg = m.PickedQuantityKg.Add(d.Quantity)
		if d.PalletID != "" {
			pallet := d.PalletID
			m.SourcePalletID = &pallet
		}
		a.UpdatedAt = w.now()

		if _, err := w.recorder.RecordAdjustmentDraw(ctx, d, a); err != nil {
			w.metrics.RecordDraw(source, false)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%s: %w", op, ctxErr)
			}
			return &apperr.DrawError{ProductName: d.ProductName, Err: err}
		}
		w.metrics.RecordDraw(source, true)

		updated = a
		return nil
	})
	if err != nil {
		return storage.AdjustmentOrder{}, err
	}

	w.log.Info("adjustment draw recorded",
		slog.String("id", id),
		slog.String("product", productName),
		slog.String("source", source),
	)
	return updated, nil
}

func pickable(a *storage.AdjustmentOrder, productName string) (*storage.AdjustmentMaterial, error) {
	if a.Status != storage.AdjustmentMaterialPicking {
		return nil, apperr.Validation("status", "adjustment order is %s, picking needs %s", a.Status, storage.AdjustmentMaterialPicking)
	}
	m := a.Material(productName)
	if m == nil {
		return nil, apperr.Validation("product_name", "material %s is not part of adjustment order %s", productName, a.ID)
	}
	return m, nil
}

func remaining(m storage.AdjustmentMaterial) (decimal.Decimal, error) {
	left := m.QuantityKg.Sub(m.PickedQuantityKg)
	if !left.IsPositive() {
		return decimal.Zero, apperr.Validation("product_name", "material %s is already fully picked", m.ProductName)
	}
	return left, nil
}
