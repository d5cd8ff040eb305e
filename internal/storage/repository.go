package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"hogar/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the storage collaborator for every feature. A single
// writer connection serializes mutations, which is what makes the one-statement
// session consume atomic.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertInvoice persists one parsed bill and returns it with its generated id.
func (r *SQLiteRepository) InsertInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO home_invoices (
			invoice_number, issue_date,
			elec_amount_cents, gas_amount_cents, services_amount_cents, taxes_amount_cents,
			total_amount_cents, elec_kwh, gas_kwh, elec_kwh_source, gas_kwh_source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		inv.InvoiceNumber, inv.IssueDate.String(),
		inv.ElecAmount.Cents, inv.GasAmount.Cents, inv.ServicesAmount.Cents, inv.TaxesAmount.Cents,
		inv.TotalAmount.Cents, inv.ElecKwh, inv.GasKwh, string(inv.ElecKwhSource), string(inv.GasKwhSource),
	)

	var createdAt string
	if err := row.Scan(&inv.ID, &createdAt); err != nil {
		return core.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	inv.CreatedAt = parseTimestamp(createdAt)

	slog.InfoContext(ctx, "Invoice saved",
		"id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"issue_date", inv.IssueDate.String(),
		"total_cents", inv.TotalAmount.Cents)

	return inv, nil
}

// GetInvoice retrieves a single invoice by id.
func (r *SQLiteRepository) GetInvoice(ctx context.Context, id int64) (core.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, issue_date,
		       elec_amount_cents, gas_amount_cents, services_amount_cents, taxes_amount_cents,
		       total_amount_cents, elec_kwh, gas_kwh, elec_kwh_source, gas_kwh_source, created_at
		FROM home_invoices WHERE id = ?`, id)

	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, core.ErrNotFound
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice %d: %w", id, err)
	}
	return inv, nil
}

// ListInvoices returns invoices ordered by issue date descending. Zero dates
// leave the corresponding range bound open.
func (r *SQLiteRepository) ListInvoices(ctx context.Context, from, to core.Date) ([]core.Invoice, error) {
	query := `
		SELECT id, invoice_number, issue_date,
		       elec_amount_cents, gas_amount_cents, services_amount_cents, taxes_amount_cents,
		       total_amount_cents, elec_kwh, gas_kwh, elec_kwh_source, gas_kwh_source, created_at
		FROM home_invoices WHERE 1=1`
	args := []any{}
	if !from.IsEmpty() {
		query += " AND issue_date >= ?"
		args = append(args, from.String())
	}
	if !to.IsEmpty() {
		query += " AND issue_date <= ?"
		args = append(args, to.String())
	}
	query += " ORDER BY issue_date DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// PurgeInvoicesBefore removes all invoices issued before the threshold date
// and returns the number of deleted rows.
func (r *SQLiteRepository) PurgeInvoicesBefore(ctx context.Context, threshold core.Date) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM home_invoices WHERE issue_date < ?", threshold.String())
	if err != nil {
		return 0, fmt.Errorf("purge invoices: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge invoices rows affected: %w", err)
	}

	slog.InfoContext(ctx, "Invoices purged", "before", threshold.String(), "deleted", n)
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (core.Invoice, error) {
	var (
		inv                   core.Invoice
		issueDate, createdAt  string
		elecSource, gasSource string
	)
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &issueDate,
		&inv.ElecAmount.Cents, &inv.GasAmount.Cents, &inv.ServicesAmount.Cents, &inv.TaxesAmount.Cents,
		&inv.TotalAmount.Cents, &inv.ElecKwh, &inv.GasKwh, &elecSource, &gasSource, &createdAt)
	if err != nil {
		return core.Invoice{}, err
	}
	if d, err := core.ParseDate(issueDate); err == nil {
		inv.IssueDate = d
	}
	inv.ElecKwhSource = core.KwhSource(elecSource)
	inv.GasKwhSource = core.KwhSource(gasSource)
	inv.CreatedAt = parseTimestamp(createdAt)
	return inv, nil
}

// parseTimestamp handles SQLite's default datetime('now') text format.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
