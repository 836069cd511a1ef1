package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

const consumptionColumns = `id, order_id, batch_id, product_name, quantity, unit, source_id, is_adjustment, is_annulled, recorded_at`

func scanConsumption(row interface{ Scan(dest ...any) error }) (storage.ConsumedMaterial, error) {
	var (
		c       storage.ConsumedMaterial
		batchID sql.NullString
	)
	err := row.Scan(&c.ID, &c.OrderID, &batchID, &c.ProductName, &c.QuantityKg, &c.Unit, &c.SourceID,
		&c.IsAdjustment, &c.IsAnnulled, &c.RecordedAt)
	if err != nil {
		return storage.ConsumedMaterial{}, err
	}
	c.BatchID = stringPtr(batchID)
	return c, nil
}

// RecordDraw списывает вес с паллеты (для станции остаток не ведётся)
// и дописывает событие в журнал в одной транзакции.
func (s *Storage) RecordDraw(ctx context.Context, d storage.Draw) (storage.ConsumedMaterial, error) {
	const op = "storage.mysql.RecordDraw"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	entry, err := recordDraw(ctx, tx, d)
	if err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: commit: %w", op, err)
	}
	return entry, nil
}

// RecordAdjustmentDraw - списание по корректировке и новый набранный вес
// в одной транзакции. При отмене ctx или любой ошибке не меняется ничего.
func (s *Storage) RecordAdjustmentDraw(ctx context.Context, d storage.Draw, a storage.AdjustmentOrder) (storage.ConsumedMaterial, error) {
	const op = "storage.mysql.RecordAdjustmentDraw"

	data, err := json.Marshal(a.Materials)
	if err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE adjustment_orders SET materials = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		data, a.UpdatedAt, a.ID, storage.AdjustmentMaterialPicking,
	)
	if err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := expectRow(res, op, "adjustment order "+a.ID+" in picking"); err != nil {
		return storage.ConsumedMaterial{}, err
	}

	entry, err := recordDraw(ctx, tx, d)
	if err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: commit: %w", op, err)
	}
	return entry, nil
}

func recordDraw(ctx context.Context, tx *sql.Tx, d storage.Draw) (storage.ConsumedMaterial, error) {
	if !d.Quantity.IsPositive() {
		return storage.ConsumedMaterial{}, apperr.Validation("quantity", "quantity must be positive")
	}
	if d.Unit == "" {
		d.Unit = storage.UnitKg
	}

	var orderExists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM production_orders WHERE id = ?)`, d.OrderID).Scan(&orderExists); err != nil {
		return storage.ConsumedMaterial{}, err
	}
	if !orderExists {
		return storage.ConsumedMaterial{}, fmt.Errorf("order %d: %w", d.OrderID, apperr.ErrNotFound)
	}

	if d.PalletID != "" {
		u, err := getStockUnit(ctx, tx, d.PalletID, true)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ConsumedMaterial{}, fmt.Errorf("pallet %s: %w", d.PalletID, apperr.ErrNotFound)
		}
		if err != nil {
			return storage.ConsumedMaterial{}, err
		}
		if u.ProductName != d.ProductName {
			return storage.ConsumedMaterial{}, fmt.Errorf("pallet %s holds %s", d.PalletID, u.ProductName)
		}
		if u.IsBlocked {
			return storage.ConsumedMaterial{}, fmt.Errorf("pallet %s is blocked: %s", d.PalletID, u.BlockReason)
		}
		if u.Quantity.LessThan(d.Quantity) {
			return storage.ConsumedMaterial{}, fmt.Errorf("pallet %s has %s: %w", d.PalletID, u.Quantity, storage.ErrInsufficientQuantity)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE stock_units SET quantity = quantity - ? WHERE id = ?`, d.Quantity, d.PalletID); err != nil {
			return storage.ConsumedMaterial{}, fmt.Errorf("списание: %w", err)
		}
	}

	entry := storage.ConsumedMaterial{
		ID:           uuid.NewString(),
		OrderID:      d.OrderID,
		BatchID:      d.BatchID,
		ProductName:  d.ProductName,
		QuantityKg:   d.Quantity,
		Unit:         d.Unit,
		SourceID:     d.SourceID(),
		IsAdjustment: d.IsAdjustment,
		RecordedAt:   time.Now().UTC(),
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO consumed_materials (id, order_id, batch_id, product_name, quantity, unit, source_id, is_adjustment, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrderID, nullString(entry.BatchID), entry.ProductName, entry.QuantityKg, entry.Unit, entry.SourceID,
		entry.IsAdjustment, entry.RecordedAt,
	)
	if err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("ошибка записи журнала: %w", err)
	}
	return entry, nil
}

// ListConsumption - журнал списаний заказа в порядке поступления.
func (s *Storage) ListConsumption(ctx context.Context, orderID int64) ([]storage.ConsumedMaterial, error) {
	const op = "storage.mysql.ListConsumption"

	list, err := listConsumption(ctx, s.db, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func listConsumption(ctx context.Context, q querier, orderID int64) ([]storage.ConsumedMaterial, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+consumptionColumns+` FROM consumed_materials WHERE order_id = ? ORDER BY seq`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]storage.ConsumedMaterial, 0)
	for rows.Next() {
		c, err := scanConsumption(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// AnnulConsumption помечает списание аннулированным и возвращает вес на паллету.
func (s *Storage) AnnulConsumption(ctx context.Context, id string) (storage.ConsumedMaterial, error) {
	const op = "storage.mysql.AnnulConsumption"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	c, err := scanConsumption(tx.QueryRowContext(ctx,
		`SELECT `+consumptionColumns+` FROM consumed_materials WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: entry %s: %w", op, id, apperr.ErrNotFound)
	}
	if err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}
	if c.IsAnnulled {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, apperr.Validation("id", "entry %s is already annulled", id))
	}

	if _, err := tx.ExecContext(ctx, `UPDATE consumed_materials SET is_annulled = TRUE WHERE id = ?`, id); err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: %w", op, err)
	}
	// для станции строки нет, UPDATE просто ничего не затронет
	if _, err := tx.ExecContext(ctx, `UPDATE stock_units SET quantity = quantity + ? WHERE id = ?`, c.QuantityKg, c.SourceID); err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: возврат на паллету: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return storage.ConsumedMaterial{}, fmt.Errorf("%s: commit: %w", op, err)
	}
	c.IsAnnulled = true
	return c, nil
}

func (s *Storage) AddProducedGood(ctx context.Context, g storage.ProducedGood) (storage.ProducedGood, error) {
	const op = "storage.mysql.AddProducedGood"

	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.RecordedAt.IsZero() {
		g.RecordedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO produced_goods (id, batch_id, produced_weight, is_annulled, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		g.ID, g.BatchID, g.ProducedWeight, g.IsAnnulled, g.RecordedAt,
	)
	if err != nil {
		return storage.ProducedGood{}, fmt.Errorf("%s: %w", op, err)
	}
	return g, nil
}

func (s *Storage) AnnulProducedGood(ctx context.Context, id string) (storage.ProducedGood, error) {
	const op = "storage.mysql.AnnulProducedGood"

	var g storage.ProducedGood
	err := s.db.QueryRowContext(ctx,
		`SELECT id, batch_id, produced_weight, is_annulled, recorded_at FROM produced_goods WHERE id = ?`, id,
	).Scan(&g.ID, &g.BatchID, &g.ProducedWeight, &g.IsAnnulled, &g.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ProducedGood{}, fmt.Errorf("%s: entry %s: %w", op, id, apperr.ErrNotFound)
	}
	if err != nil {
		return storage.ProducedGood{}, fmt.Errorf("%s: %w", op, err)
	}
	if g.IsAnnulled {
		return storage.ProducedGood{}, fmt.Errorf("%s: %w", op, apperr.Validation("id", "entry %s is already annulled", id))
	}

	// условие на is_annulled защищает от двойной аннуляции при гонке
	res, err := s.db.ExecContext(ctx, `UPDATE produced_goods SET is_annulled = TRUE WHERE id = ? AND is_annulled = FALSE`, id)
	if err != nil {
		return storage.ProducedGood{}, fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ProducedGood{}, fmt.Errorf("%s: %w", op, apperr.Validation("id", "entry %s is already annulled", id))
	}

	g.IsAnnulled = true
	return g, nil
}

// listProduced - выпуск по всем партиям заказа.
func listProduced(ctx context.Context, q querier, orderID int64) ([]storage.ProducedGood, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT g.id, g.batch_id, g.produced_weight, g.is_annulled, g.recorded_at
		FROM produced_goods g JOIN batches b ON b.id = g.batch_id
		WHERE b.order_id = ? ORDER BY g.seq`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]storage.ProducedGood, 0)
	for rows.Next() {
		var g storage.ProducedGood
		if err := rows.Scan(&g.ID, &g.BatchID, &g.ProducedWeight, &g.IsAnnulled, &g.RecordedAt); err != nil {
			return nil, err
		}
		list = append(list, g)
	}
	return list, rows.Err()
}
