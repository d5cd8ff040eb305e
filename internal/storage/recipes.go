package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"hogar/internal/core"
)

// CreateRecipe inserts a recipe with its steps and links its ingredients,
// creating any ingredient that does not exist yet. Ingredient lookups are
// case-insensitive so "Tomate" and "tomate" share one row. The whole
// operation runs in a single transaction.
func (r *SQLiteRepository) CreateRecipe(ctx context.Context, rec core.Recipe) (core.Recipe, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Recipe{}, fmt.Errorf("begin recipe tx: %w", err)
	}
	defer tx.Rollback()

	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return core.Recipe{}, fmt.Errorf("encode steps: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		"INSERT INTO recipes (name, steps) VALUES (?, ?) RETURNING id",
		rec.Name, string(steps),
	).Scan(&rec.ID); err != nil {
		return core.Recipe{}, fmt.Errorf("insert recipe: %w", err)
	}

	for _, ing := range rec.Ingredients {
		var ingredientID int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM ingredients WHERE name = ?", ing.Name,
		).Scan(&ingredientID)
		if errors.Is(err, sql.ErrNoRows) {
			store := ing.Store
			if store == "" {
				store = "General"
			}
			err = tx.QueryRowContext(ctx,
				"INSERT INTO ingredients (name, preferred_store) VALUES (?, ?) RETURNING id",
				ing.Name, store,
			).Scan(&ingredientID)
		}
		if err != nil {
			return core.Recipe{}, fmt.Errorf("resolve ingredient %q: %w", ing.Name, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO recipe_ingredients (recipe_id, ingredient_id, amount) VALUES (?, ?, ?)",
			rec.ID, ingredientID, ing.Amount,
		); err != nil {
			return core.Recipe{}, fmt.Errorf("link ingredient %q: %w", ing.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Recipe{}, fmt.Errorf("commit recipe tx: %w", err)
	}

	slog.InfoContext(ctx, "Recipe created",
		"id", rec.ID,
		"name", rec.Name,
		"ingredients", len(rec.Ingredients))

	return rec, nil
}

func (r *SQLiteRepository) GetRecipe(ctx context.Context, id int64) (core.Recipe, error) {
	var (
		rec   core.Recipe
		steps string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, steps FROM recipes WHERE id = ?", id,
	).Scan(&rec.ID, &rec.Name, &steps)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Recipe{}, core.ErrNotFound
	}
	if err != nil {
		return core.Recipe{}, fmt.Errorf("get recipe %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(steps), &rec.Steps); err != nil {
		return core.Recipe{}, fmt.Errorf("decode steps: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT i.name, ri.amount, i.preferred_store
		FROM recipe_ingredients ri
		JOIN ingredients i ON i.id = ri.ingredient_id
		WHERE ri.recipe_id = ?
		ORDER BY i.name`, id)
	if err != nil {
		return core.Recipe{}, fmt.Errorf("get recipe ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ing core.RecipeIngredient
		if err := rows.Scan(&ing.Name, &ing.Amount, &ing.Store); err != nil {
			return core.Recipe{}, fmt.Errorf("scan ingredient: %w", err)
		}
		rec.Ingredients = append(rec.Ingredients, ing)
	}
	return rec, rows.Err()
}

// ListRecipes returns all recipes without their ingredient details.
func (r *SQLiteRepository) ListRecipes(ctx context.Context) ([]core.Recipe, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, steps FROM recipes ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []core.Recipe
	for rows.Next() {
		var (
			rec   core.Recipe
			steps string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &steps); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		if err := json.Unmarshal([]byte(steps), &rec.Steps); err != nil {
			return nil, fmt.Errorf("decode steps: %w", err)
		}
		recipes = append(recipes, rec)
	}
	return recipes, rows.Err()
}

func (r *SQLiteRepository) DeleteRecipe(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM recipes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete recipe %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete recipe rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Recipe deleted", "id", id)
	return nil
}
