package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

const adjustmentColumns = `id, production_order_id, batch_id, reason, status, container_id, materials,
	created_at, updated_at, completed_at`

func scanAdjustment(row interface{ Scan(dest ...any) error }) (storage.AdjustmentOrder, error) {
	var (
		a         storage.AdjustmentOrder
		batchID   sql.NullString
		materials []byte
		completed sql.NullTime
	)
	err := row.Scan(&a.ID, &a.ProductionOrderID, &batchID, &a.Reason, &a.Status, &a.ContainerID, &materials,
		&a.CreatedAt, &a.UpdatedAt, &completed)
	if err != nil {
		return storage.AdjustmentOrder{}, err
	}
	a.BatchID = stringPtr(batchID)
	a.CompletedAt = timePtr(completed)
	if err := json.Unmarshal(materials, &a.Materials); err != nil {
		return storage.AdjustmentOrder{}, fmt.Errorf("materials of adjustment %s: %w", a.ID, err)
	}
	return a, nil
}

func (s *Storage) GetAdjustmentOrder(ctx context.Context, id string) (storage.AdjustmentOrder, error) {
	const op = "storage.mysql.GetAdjustmentOrder"

	a, err := scanAdjustment(s.db.QueryRowContext(ctx, `SELECT `+adjustmentColumns+` FROM adjustment_orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.AdjustmentOrder{}, fmt.Errorf("%s: adjustment %s: %w", op, id, apperr.ErrNotFound)
	}
	if err != nil {
		return storage.AdjustmentOrder{}, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// ListAdjustmentOrders с productionOrderID == 0 возвращает все корректировки.
func (s *Storage) ListAdjustmentOrders(ctx context.Context, productionOrderID int64) ([]storage.AdjustmentOrder, error) {
	const op = "storage.mysql.ListAdjustmentOrders"

	query := `SELECT ` + adjustmentColumns + ` FROM adjustment_orders`
	var args []any
	if productionOrderID != 0 {
		query += ` WHERE production_order_id = ?`
		args = append(args, productionOrderID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	list := make([]storage.AdjustmentOrder, 0)
	for rows.Next() {
		a, err := scanAdjustment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: ошибка сканирования строк: %w", op, err)
	}

	return list, nil
}

func (s *Storage) ActiveAdjustmentForBatch(ctx context.Context, batchID string) (storage.AdjustmentOrder, error) {
	const op = "storage.mysql.ActiveAdjustmentForBatch"

	a, err := scanAdjustment(s.db.QueryRowContext(ctx,
		`SELECT `+adjustmentColumns+` FROM adjustment_orders WHERE active_batch_id = ?`, batchID))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.AdjustmentOrder{}, fmt.Errorf("%s: batch %s: %w", op, batchID, apperr.ErrNotFound)
	}
	if err != nil {
		return storage.AdjustmentOrder{}, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// SaveAdjustmentOrder - вставка или полная перезапись.
// Второй незавершённый заказ на ту же партию отсекается уникальным ключом active_batch_id.
func (s *Storage) SaveAdjustmentOrder(ctx context.Context, a storage.AdjustmentOrder) error {
	const op = "storage.mysql.SaveAdjustmentOrder"

	materials := a.Materials
	if materials == nil {
		materials = []storage.AdjustmentMaterial{}
	}
	data, err := json.Marshal(materials)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO adjustment_orders (id, production_order_id, batch_id, reason, status, container_id, materials,
			created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), container_id = VALUES(container_id),
			materials = VALUES(materials), updated_at = VALUES(updated_at), completed_at = VALUES(completed_at)`,
		a.ID, a.ProductionOrderID, nullString(a.BatchID), a.Reason, a.Status, a.ContainerID, data,
		a.CreatedAt, a.UpdatedAt, nullTime(a.CompletedAt),
	)
	if err != nil {
		if isMySQLError(err, errDuplicateEntry) && a.BatchID != nil {
			existing, getErr := s.ActiveAdjustmentForBatch(ctx, *a.BatchID)
			if getErr == nil && existing.ID != a.ID {
				return fmt.Errorf("%s: %w", op, &apperr.DuplicateOrderError{BatchID: *a.BatchID, ExistingID: existing.ID})
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
