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

// CreatePack inserts a new service pack with zero used sessions and an empty
// date history. Validation happens at the service layer.
func (r *SQLiteRepository) CreatePack(ctx context.Context, p core.ServicePack) (core.ServicePack, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO service_passes (service_name, total_sessions, used_sessions, amount_paid_cents, last_payment_date, session_dates)
		VALUES (?, ?, 0, ?, ?, '[]')
		RETURNING id, created_at`,
		p.ServiceName, p.TotalSessions, p.AmountPaid.Cents, p.LastPaymentDate.String(),
	)

	var createdAt string
	if err := row.Scan(&p.ID, &createdAt); err != nil {
		return core.ServicePack{}, fmt.Errorf("insert pack: %w", err)
	}
	p.UsedSessions = 0
	p.SessionDates = nil
	p.CreatedAt = parseTimestamp(createdAt)

	slog.InfoContext(ctx, "Service pack created",
		"id", p.ID,
		"service_name", p.ServiceName,
		"total_sessions", p.TotalSessions)

	return p, nil
}

func (r *SQLiteRepository) GetPack(ctx context.Context, id int64) (core.ServicePack, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, service_name, total_sessions, used_sessions, amount_paid_cents, last_payment_date, session_dates, created_at
		FROM service_passes WHERE id = ?`, id)

	p, err := scanPack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ServicePack{}, core.ErrNotFound
	}
	if err != nil {
		return core.ServicePack{}, fmt.Errorf("get pack %d: %w", id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListPacks(ctx context.Context) ([]core.ServicePack, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, service_name, total_sessions, used_sessions, amount_paid_cents, last_payment_date, session_dates, created_at
		FROM service_passes ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	defer rows.Close()

	var packs []core.ServicePack
	for rows.Next() {
		p, err := scanPack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pack: %w", err)
		}
		packs = append(packs, p)
	}
	return packs, rows.Err()
}

// ConsumeSession increments the session counter and appends the consumption
// date to the history in a single statement. The counter and history can
// never drift apart, and concurrent consumes cannot lose an increment: the
// read-modify-write happens inside SQLite, not in application code.
func (r *SQLiteRepository) ConsumeSession(ctx context.Context, id int64, date core.Date) (core.ServicePack, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE service_passes
		SET used_sessions = used_sessions + 1,
		    session_dates = json_insert(session_dates, '$[#]', ?)
		WHERE id = ?
		RETURNING id, service_name, total_sessions, used_sessions, amount_paid_cents, last_payment_date, session_dates, created_at`,
		date.String(), id,
	)

	p, err := scanPack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ServicePack{}, core.ErrNotFound
	}
	if err != nil {
		return core.ServicePack{}, fmt.Errorf("consume session on pack %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Session consumed",
		"id", p.ID,
		"service_name", p.ServiceName,
		"used_sessions", p.UsedSessions,
		"total_sessions", p.TotalSessions,
		"date", date.String())

	return p, nil
}

// RenewPack resets the counter and history and records the new payment date.
// Callable regardless of whether the pack was exhausted.
func (r *SQLiteRepository) RenewPack(ctx context.Context, id int64, paymentDate core.Date) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE service_passes
		SET used_sessions = 0, session_dates = '[]', last_payment_date = ?
		WHERE id = ?`,
		paymentDate.String(), id,
	)
	if err != nil {
		return fmt.Errorf("renew pack %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("renew pack rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Service pack renewed", "id", id, "payment_date", paymentDate.String())
	return nil
}

func (r *SQLiteRepository) DeletePack(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM service_passes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete pack %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pack rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Service pack deleted", "id", id)
	return nil
}

func scanPack(row rowScanner) (core.ServicePack, error) {
	var (
		p                  core.ServicePack
		lastPayment, dates string
		createdAt          string
	)
	err := row.Scan(&p.ID, &p.ServiceName, &p.TotalSessions, &p.UsedSessions,
		&p.AmountPaid.Cents, &lastPayment, &dates, &createdAt)
	if err != nil {
		return core.ServicePack{}, err
	}
	if d, err := core.ParseDate(lastPayment); err == nil {
		p.LastPaymentDate = d
	}

	var raw []string
	if err := json.Unmarshal([]byte(dates), &raw); err != nil {
		return core.ServicePack{}, fmt.Errorf("decode session dates: %w", err)
	}
	for _, s := range raw {
		d, err := core.ParseDate(s)
		if err != nil {
			return core.ServicePack{}, fmt.Errorf("decode session date %q: %w", s, err)
		}
		p.SessionDates = append(p.SessionDates, d)
	}

	p.CreatedAt = parseTimestamp(createdAt)
	return p, nil
}
