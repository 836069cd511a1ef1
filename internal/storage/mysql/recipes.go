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

const recipeColumns = `id, name, production_rate, ingredients, packaging, is_active, previous_version_id, created_at`

func scanRecipe(row interface{ Scan(dest ...any) error }) (storage.Recipe, error) {
	var (
		r           storage.Recipe
		ingredients []byte
		packaging   []byte
		prev        sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Name, &r.ProductionRateKgPerMinute, &ingredients, &packaging, &r.IsActive, &prev, &r.CreatedAt); err != nil {
		return storage.Recipe{}, err
	}
	if err := json.Unmarshal(ingredients, &r.Ingredients); err != nil {
		return storage.Recipe{}, fmt.Errorf("ingredients of recipe %d: %w", r.ID, err)
	}
	if err := json.Unmarshal(packaging, &r.Packaging); err != nil {
		return storage.Recipe{}, fmt.Errorf("packaging of recipe %d: %w", r.ID, err)
	}
	if prev.Valid {
		id := prev.Int64
		r.PreviousVersionID = &id
	}
	return r, nil
}

func (s *Storage) ListRecipes(ctx context.Context) ([]storage.Recipe, error) {
	const op = "storage.mysql.ListRecipes"

	rows, err := s.db.QueryContext(ctx, `SELECT `+recipeColumns+` FROM recipes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	recipes := make([]storage.Recipe, 0)
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: ошибка сканирования строк: %w", op, err)
	}

	return recipes, nil
}

func (s *Storage) GetRecipe(ctx context.Context, id int64) (storage.Recipe, error) {
	const op = "storage.mysql.GetRecipe"

	r, err := scanRecipe(s.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Recipe{}, fmt.Errorf("%s: recipe %d: %w", op, id, apperr.ErrNotFound)
	}
	if err != nil {
		return storage.Recipe{}, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

func (s *Storage) CreateRecipe(ctx context.Context, r storage.Recipe) (int64, error) {
	const op = "storage.mysql.CreateRecipe"

	ingredients, packaging, err := recipeJSON(r)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var prev sql.NullInt64
	if r.PreviousVersionID != nil {
		prev = sql.NullInt64{Int64: *r.PreviousVersionID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO recipes (name, production_rate, ingredients, packaging, is_active, previous_version_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, UTC_TIMESTAMP(6))`,
		r.Name, r.ProductionRateKgPerMinute, ingredients, packaging, r.IsActive, prev,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: ошибка сохранения рецептуры: %w", op, err)
	}

	return res.LastInsertId()
}

func (s *Storage) UpdateRecipe(ctx context.Context, r storage.Recipe) error {
	const op = "storage.mysql.UpdateRecipe"

	ingredients, packaging, err := recipeJSON(r)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE recipes SET name = ?, production_rate = ?, ingredients = ?, packaging = ?, is_active = ?
		WHERE id = ?`,
		r.Name, r.ProductionRateKgPerMinute, ingredients, packaging, r.IsActive, r.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectRow(res, op, fmt.Sprintf("recipe %d", r.ID))
}

func (s *Storage) DeactivateRecipe(ctx context.Context, id int64) error {
	const op = "storage.mysql.DeactivateRecipe"

	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM recipes WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: recipe %d: %w", op, id, apperr.ErrNotFound)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE recipes SET is_active = FALSE WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) RecipeInUse(ctx context.Context, id int64) (bool, error) {
	const op = "storage.mysql.RecipeInUse"

	var inUse bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM production_orders WHERE recipe_id = ? AND status <> ?)`,
		id, storage.OrderCompleted,
	).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return inUse, nil
}

func recipeJSON(r storage.Recipe) ([]byte, []byte, error) {
	ingredients, err := json.Marshal(r.Ingredients)
	if err != nil {
		return nil, nil, fmt.Errorf("ingredients: %w", err)
	}
	packaging, err := json.Marshal(r.Packaging)
	if err != nil {
		return nil, nil, fmt.Errorf("packaging: %w", err)
	}
	return ingredients, packaging, nil
}

// expectRow - UPDATE без затронутых строк означает, что записи нет.
// Для MySQL без CLIENT_FOUND_ROWS неизменённая строка тоже даёт 0, поэтому
// вызывается только там, где обновляется хотя бы одна изменяемая колонка.
func expectRow(res sql.Result, op, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %s: %w", op, what, apperr.ErrNotFound)
	}
	return nil
}
