package storage

import (
	"context"
	"fmt"
	"log/slog"

	"hogar/internal/core"
)

// AssignMeal creates or replaces the planned recipe for a day and meal slot.
func (r *SQLiteRepository) AssignMeal(ctx context.Context, m core.PlannedMeal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO weekly_plan (day_date, meal_type, recipe_id)
		VALUES (?, ?, ?)
		ON CONFLICT (day_date, meal_type) DO UPDATE SET recipe_id = excluded.recipe_id`,
		m.Date.String(), string(m.MealType), m.RecipeID,
	)
	if err != nil {
		return fmt.Errorf("assign meal: %w", err)
	}

	slog.InfoContext(ctx, "Meal assigned",
		"date", m.Date.String(),
		"meal_type", string(m.MealType),
		"recipe_id", m.RecipeID)

	return nil
}

// RemoveMeal clears one day/meal slot. Removing an empty slot is a no-op.
func (r *SQLiteRepository) RemoveMeal(ctx context.Context, date core.Date, mealType core.MealType) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM weekly_plan WHERE day_date = ? AND meal_type = ?",
		date.String(), string(mealType),
	)
	if err != nil {
		return fmt.Errorf("remove meal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListPlan(ctx context.Context, from, to core.Date) ([]core.PlannedMeal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT day_date, meal_type, recipe_id
		FROM weekly_plan
		WHERE day_date >= ? AND day_date <= ?
		ORDER BY day_date, meal_type`,
		from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list plan: %w", err)
	}
	defer rows.Close()

	var plan []core.PlannedMeal
	for rows.Next() {
		var (
			m       core.PlannedMeal
			day, mt string
		)
		if err := rows.Scan(&day, &mt, &m.RecipeID); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		if d, err := core.ParseDate(day); err == nil {
			m.Date = d
		}
		m.MealType = core.MealType(mt)
		plan = append(plan, m)
	}
	return plan, rows.Err()
}

// DeletePlanRange removes all plan rows inside the inclusive date range.
func (r *SQLiteRepository) DeletePlanRange(ctx context.Context, from, to core.Date) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM weekly_plan WHERE day_date >= ? AND day_date <= ?",
		from.String(), to.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete plan range: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete plan range rows affected: %w", err)
	}
	return n, nil
}

// PurgePastPlans removes plan rows older than the given date.
func (r *SQLiteRepository) PurgePastPlans(ctx context.Context, today core.Date) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM weekly_plan WHERE day_date < ?", today.String())
	if err != nil {
		return 0, fmt.Errorf("purge past plans: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge past plans rows affected: %w", err)
	}

	slog.InfoContext(ctx, "Past plans purged", "before", today.String(), "deleted", n)
	return n, nil
}
