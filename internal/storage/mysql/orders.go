package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

const orderColumns = `id, code, kind, recipe_id, target_quantity_kg, planned_date, shelf_life_months, status,
	has_shortages, notes, split_group, mixer_capacity_kg, batch_count, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (storage.ProductionOrder, error) {
	var (
		o          storage.ProductionOrder
		splitGroup sql.NullString
		mixer      decimal.NullDecimal
		batchCount sql.NullInt64
	)
	err := row.Scan(
		&o.ID, &o.Code, &o.Kind, &o.RecipeID, &o.TargetQuantityKg, &o.PlannedDate, &o.ShelfLifeMonths, &o.Status,
		&o.HasShortages, &o.Notes, &splitGroup, &mixer, &batchCount, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return storage.ProductionOrder{}, err
	}
	o.SplitGroup = splitGroup.String
	if mixer.Valid {
		o.Agro = &storage.AgroRun{MixerCapacityKg: mixer.Decimal}
	}
	if batchCount.Valid {
		o.Psd = &storage.PsdTask{BatchCount: int(batchCount.Int64)}
	}
	return o, nil
}

// ListOrdersByStatus без статусов возвращает все заказы.
func (s *Storage) ListOrdersByStatus(ctx context.Context, statuses ...storage.OrderStatus) ([]storage.ProductionOrder, error) {
	const op = "storage.mysql.ListOrdersByStatus"

	query := `SELECT ` + orderColumns + ` FROM production_orders`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY planned_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	orders := make([]storage.ProductionOrder, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: ошибка сканирования строк: %w", op, err)
	}

	for i := range orders {
		if err := s.loadBatches(ctx, s.db, &orders[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return orders, nil
}

func (s *Storage) GetOrder(ctx context.Context, id int64) (storage.ProductionOrder, error) {
	const op = "storage.mysql.GetOrder"

	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM production_orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ProductionOrder{}, fmt.Errorf("%s: order %d: %w", op, id, apperr.ErrNotFound)
	}
	if err != nil {
		return storage.ProductionOrder{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.loadBatches(ctx, s.db, &o); err != nil {
		return storage.ProductionOrder{}, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

// loadBatches читает партии заказа вместе с журналами списаний и выпуска.
func (s *Storage) loadBatches(ctx context.Context, q querier, o *storage.ProductionOrder) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, batch_number, status, start_time, end_time, nirs, sampling, nirs_nok_at, weighing_finished
		FROM batches WHERE order_id = ? ORDER BY batch_number`, o.ID)
	if err != nil {
		return fmt.Errorf("batches of order %d: %w", o.ID, err)
	}
	defer rows.Close()

	o.Batches = make([]storage.Batch, 0)
	for rows.Next() {
		var (
			b        storage.Batch
			start    sql.NullTime
			end      sql.NullTime
			nokAt    sql.NullTime
			weighing []byte
		)
		if err := rows.Scan(&b.ID, &b.OrderID, &b.BatchNumber, &b.Status, &start, &end,
			&b.Confirmation.Nirs, &b.Confirmation.Sampling, &nokAt, &weighing); err != nil {
			return fmt.Errorf("batches of order %d: %w", o.ID, err)
		}
		b.StartTime, b.EndTime = timePtr(start), timePtr(end)
		b.Confirmation.NirsNokAt = timePtr(nokAt)
		if err := json.Unmarshal(weighing, &b.WeighingFinished); err != nil {
			return fmt.Errorf("weighing of batch %s: %w", b.ID, err)
		}
		o.Batches = append(o.Batches, b)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(o.Batches) == 0 {
		return nil
	}

	consumed, err := listConsumption(ctx, q, o.ID)
	if err != nil {
		return err
	}
	for _, c := range consumed {
		if c.BatchID == nil {
			continue
		}
		if b := o.BatchByID(*c.BatchID); b != nil {
			b.ConsumedMaterials = append(b.ConsumedMaterials, c)
		}
	}

	produced, err := listProduced(ctx, q, o.ID)
	if err != nil {
		return err
	}
	for _, g := range produced {
		if b := o.BatchByID(g.BatchID); b != nil {
			b.ProducedGoods = append(b.ProducedGoods, g)
		}
	}

	return nil
}

// NextOrderSeq выдаёт следующий номер для кода заказа данного вида.
// LAST_INSERT_ID(expr) делает счётчик атомарным без отдельной транзакции.
func (s *Storage) NextOrderSeq(ctx context.Context, kind storage.OrderKind) (int, error) {
	const op = "storage.mysql.NextOrderSeq"

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO order_sequences (kind, value) VALUES (?, LAST_INSERT_ID(1))
		ON DUPLICATE KEY UPDATE value = LAST_INSERT_ID(value + 1)`, kind)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(seq), nil
}

func (s *Storage) CreateOrder(ctx context.Context, o storage.ProductionOrder) (int64, error) {
	const op = "storage.mysql.CreateOrder"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	mixer, batchCount := orderPayload(o)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO production_orders (code, kind, recipe_id, target_quantity_kg, planned_date, shelf_life_months,
			status, has_shortages, notes, split_group, mixer_capacity_kg, batch_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP(6), UTC_TIMESTAMP(6))`,
		o.Code, o.Kind, o.RecipeID, o.TargetQuantityKg, dateOnly(o.PlannedDate), o.ShelfLifeMonths,
		o.Status, o.HasShortages, o.Notes, nullIfEmpty(o.SplitGroup), mixer, batchCount,
	)
	if err != nil {
		if isMySQLError(err, errDuplicateEntry) {
			return 0, fmt.Errorf("%s: %w", op, apperr.Validation("code", "order code %s already exists", o.Code))
		}
		return 0, fmt.Errorf("%s: ошибка сохранения заказа: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	for _, b := range o.Batches {
		b.OrderID = id
		if err := upsertBatch(ctx, tx, b); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}
	return id, nil
}

// UpdateOrder сохраняет заголовок и партии заказа. Партии, которых больше нет в заказе, удаляются.
func (s *Storage) UpdateOrder(ctx context.Context, o storage.ProductionOrder) error {
	const op = "storage.mysql.UpdateOrder"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	mixer, batchCount := orderPayload(o)
	res, err := tx.ExecContext(ctx, `
		UPDATE production_orders SET recipe_id = ?, target_quantity_kg = ?, planned_date = ?, shelf_life_months = ?,
			status = ?, has_shortages = ?, notes = ?, split_group = ?, mixer_capacity_kg = ?, batch_count = ?,
			updated_at = UTC_TIMESTAMP(6)
		WHERE id = ?`,
		o.RecipeID, o.TargetQuantityKg, dateOnly(o.PlannedDate), o.ShelfLifeMonths,
		o.Status, o.HasShortages, o.Notes, nullIfEmpty(o.SplitGroup), mixer, batchCount, o.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	// updated_at меняется всегда, поэтому 0 строк значит, что заказа нет
	if err := expectRow(res, op, fmt.Sprintf("order %d", o.ID)); err != nil {
		return err
	}

	keep := make([]any, 0, len(o.Batches)+1)
	keep = append(keep, o.ID)
	for _, b := range o.Batches {
		keep = append(keep, b.ID)
	}
	deleteQuery := `DELETE FROM batches WHERE order_id = ?`
	if len(o.Batches) > 0 {
		deleteQuery += ` AND id NOT IN (` + placeholders(len(o.Batches)) + `)`
	}
	if _, err := tx.ExecContext(ctx, deleteQuery, keep...); err != nil {
		return fmt.Errorf("%s: удаление партий: %w", op, err)
	}

	// номера партий могут переставляться, поэтому сначала освобождаем уникальный ключ
	if _, err := tx.ExecContext(ctx, `UPDATE batches SET batch_number = -batch_number WHERE order_id = ?`, o.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, b := range o.Batches {
		b.OrderID = o.ID
		if err := upsertBatch(ctx, tx, b); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *Storage) SaveBatch(ctx context.Context, b storage.Batch) error {
	const op = "storage.mysql.SaveBatch"

	weighing, err := weighingJSON(b)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE batches SET status = ?, start_time = ?, end_time = ?, nirs = ?, sampling = ?, nirs_nok_at = ?, weighing_finished = ?
		WHERE id = ? AND order_id = ?`,
		b.Status, nullTime(b.StartTime), nullTime(b.EndTime), b.Confirmation.Nirs, b.Confirmation.Sampling,
		nullTime(b.Confirmation.NirsNokAt), weighing,
		b.ID, b.OrderID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		// строка могла не измениться, отличаем это от отсутствия партии
		var exists bool
		err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM batches WHERE id = ? AND order_id = ?)`, b.ID, b.OrderID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			return fmt.Errorf("%s: batch %s: %w", op, b.ID, apperr.ErrNotFound)
		}
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE production_orders SET updated_at = UTC_TIMESTAMP(6) WHERE id = ?`, b.OrderID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) SetShortageFlags(ctx context.Context, flags map[int64]bool) error {
	const op = "storage.mysql.SetShortageFlags"

	if len(flags) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE production_orders SET has_shortages = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	for id, flag := range flags {
		if _, err := stmt.ExecContext(ctx, flag, id); err != nil {
			return fmt.Errorf("%s: order %d: %w", op, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *Storage) DeleteOrder(ctx context.Context, id int64) error {
	const op = "storage.mysql.DeleteOrder"

	res, err := s.db.ExecContext(ctx, `DELETE FROM production_orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectRow(res, op, fmt.Sprintf("order %d", id))
}

func upsertBatch(ctx context.Context, q querier, b storage.Batch) error {
	weighing, err := weighingJSON(b)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO batches (id, order_id, batch_number, status, start_time, end_time, nirs, sampling, nirs_nok_at, weighing_finished)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE batch_number = VALUES(batch_number), status = VALUES(status),
			start_time = VALUES(start_time), end_time = VALUES(end_time), nirs = VALUES(nirs),
			sampling = VALUES(sampling), nirs_nok_at = VALUES(nirs_nok_at), weighing_finished = VALUES(weighing_finished)`,
		b.ID, b.OrderID, b.BatchNumber, b.Status, nullTime(b.StartTime), nullTime(b.EndTime),
		b.Confirmation.Nirs, b.Confirmation.Sampling, nullTime(b.Confirmation.NirsNokAt), weighing,
	)
	if err != nil {
		if isMySQLError(err, errForeignKey) {
			return fmt.Errorf("batch %s: order %d: %w", b.ID, b.OrderID, apperr.ErrNotFound)
		}
		return fmt.Errorf("batch %s: %w", b.ID, err)
	}
	return nil
}

func weighingJSON(b storage.Batch) ([]byte, error) {
	names := b.WeighingFinished
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("weighing of batch %s: %w", b.ID, err)
	}
	return data, nil
}

func orderPayload(o storage.ProductionOrder) (decimal.NullDecimal, sql.NullInt64) {
	var (
		mixer      decimal.NullDecimal
		batchCount sql.NullInt64
	)
	if o.Agro != nil {
		mixer = decimal.NullDecimal{Decimal: o.Agro.MixerCapacityKg, Valid: true}
	}
	if o.Psd != nil {
		batchCount = sql.NullInt64{Int64: int64(o.Psd.BatchCount), Valid: true}
	}
	return mixer, batchCount
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
