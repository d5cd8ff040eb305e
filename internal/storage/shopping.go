package storage

import (
	"context"
	"fmt"
	"log/slog"

	"hogar/internal/core"
)

func (r *SQLiteRepository) AddShoppingItem(ctx context.Context, name string, manual bool) (core.ShoppingItem, error) {
	item := core.ShoppingItem{Name: name, IsManual: manual}
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO shopping_list_items (name, is_manual, checked) VALUES (?, ?, 0) RETURNING id",
		name, manual,
	).Scan(&item.ID)
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("add shopping item: %w", err)
	}
	return item, nil
}

// AddShoppingItems bulk-inserts imported (non-manual) items.
func (r *SQLiteRepository) AddShoppingItems(ctx context.Context, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin shopping tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO shopping_list_items (name, is_manual, checked) VALUES (?, 0, 0)")
	if err != nil {
		return 0, fmt.Errorf("prepare shopping insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, name); err != nil {
			return 0, fmt.Errorf("insert shopping item %q: %w", name, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit shopping tx: %w", err)
	}
	return inserted, nil
}

func (r *SQLiteRepository) ListShoppingItems(ctx context.Context) ([]core.ShoppingItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, is_manual, checked FROM shopping_list_items ORDER BY checked, id")
	if err != nil {
		return nil, fmt.Errorf("list shopping items: %w", err)
	}
	defer rows.Close()

	var items []core.ShoppingItem
	for rows.Next() {
		var item core.ShoppingItem
		if err := rows.Scan(&item.ID, &item.Name, &item.IsManual, &item.Checked); err != nil {
			return nil, fmt.Errorf("scan shopping item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) SetShoppingItemChecked(ctx context.Context, id int64, checked bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE shopping_list_items SET checked = ? WHERE id = ?", checked, id)
	if err != nil {
		return fmt.Errorf("toggle shopping item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("toggle shopping item rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteShoppingItem(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM shopping_list_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete shopping item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete shopping item rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ClearShoppingList(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM shopping_list_items")
	if err != nil {
		return 0, fmt.Errorf("clear shopping list: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear shopping list rows affected: %w", err)
	}

	slog.InfoContext(ctx, "Shopping list cleared", "deleted", n)
	return n, nil
}

// PlannedIngredientNames returns the distinct ingredient names of every
// recipe planned inside the inclusive date range, for the week import.
func (r *SQLiteRepository) PlannedIngredientNames(ctx context.Context, from, to core.Date) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT i.name
		FROM weekly_plan wp
		JOIN recipe_ingredients ri ON ri.recipe_id = wp.recipe_id
		JOIN ingredients i ON i.id = ri.ingredient_id
		WHERE wp.day_date >= ? AND wp.day_date <= ?
		ORDER BY i.name`,
		from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("planned ingredient names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan ingredient name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
