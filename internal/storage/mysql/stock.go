package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

const stockColumns = `id, product_name, quantity, unit, location_id, is_blocked, block_reason, expiry_date`

func scanStockUnit(row interface{ Scan(dest ...any) error }) (storage.StockUnit, error) {
	var (
		u      storage.StockUnit
		expiry sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.ProductName, &u.Quantity, &u.Unit, &u.LocationID, &u.IsBlocked, &u.BlockReason, &expiry); err != nil {
		return storage.StockUnit{}, err
	}
	u.ExpiryDate = timePtr(expiry)
	return u, nil
}

func (s *Storage) ListStockUnits(ctx context.Context) ([]storage.StockUnit, error) {
	const op = "storage.mysql.ListStockUnits"

	rows, err := s.db.QueryContext(ctx, `SELECT `+stockColumns+` FROM stock_units ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	units := make([]storage.StockUnit, 0)
	for rows.Next() {
		u, err := scanStockUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: ошибка сканирования строк: %w", op, err)
	}

	return units, nil
}

func (s *Storage) GetStockUnit(ctx context.Context, id string) (storage.StockUnit, error) {
	const op = "storage.mysql.GetStockUnit"

	u, err := getStockUnit(ctx, s.db, id, false)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.StockUnit{}, fmt.Errorf("%s: unit %s: %w", op, id, apperr.ErrNotFound)
	}
	if err != nil {
		return storage.StockUnit{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// PutStockUnit - приёмка или корректировка паллеты внешней системой.
func (s *Storage) PutStockUnit(ctx context.Context, u storage.StockUnit) error {
	const op = "storage.mysql.PutStockUnit"

	if u.ID == "" {
		return fmt.Errorf("%s: %w", op, apperr.Validation("id", "stock unit id is required"))
	}
	if u.Unit == "" {
		u.Unit = storage.UnitKg
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_units (id, product_name, quantity, unit, location_id, is_blocked, block_reason, expiry_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE product_name = VALUES(product_name), quantity = VALUES(quantity), unit = VALUES(unit),
			location_id = VALUES(location_id), is_blocked = VALUES(is_blocked), block_reason = VALUES(block_reason),
			expiry_date = VALUES(expiry_date)`,
		u.ID, u.ProductName, u.Quantity, u.Unit, u.LocationID, u.IsBlocked, u.BlockReason, nullTime(u.ExpiryDate),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// getStockUnit с forUpdate блокирует строку до конца транзакции.
func getStockUnit(ctx context.Context, q querier, id string, forUpdate bool) (storage.StockUnit, error) {
	query := `SELECT ` + stockColumns + ` FROM stock_units WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanStockUnit(q.QueryRowContext(ctx, query, id))
}
