// Package worker contains the background process that mirrors stored
// invoices into the household Google Sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"hogar/internal/amqp"
	"hogar/internal/core"
	"hogar/internal/sheets"
	"hogar/internal/storage"
)

// ExportWorker consumes invoice export messages and appends the referenced
// invoices to the spreadsheet. Transient Sheets failures are retried with
// exponential backoff before the message is nacked back to the queue.
type ExportWorker struct {
	storage    *storage.SQLiteRepository
	exporter   sheets.InvoiceExporter
	maxRetries uint64
}

func NewExportWorker(storage *storage.SQLiteRepository, exporter sheets.InvoiceExporter, maxRetries int) *ExportWorker {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &ExportWorker{
		storage:    storage,
		exporter:   exporter,
		maxRetries: uint64(maxRetries),
	}
}

// HandleExportMessage processes a single invoice export message from AMQP.
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.InvoiceExportMessage) error {
	slog.InfoContext(ctx, "Processing export message", "id", msg.ID)

	invoice, err := w.storage.GetInvoice(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// The invoice was purged after the message was queued. Ack and
			// move on, requeueing can never succeed.
			slog.WarnContext(ctx, "Invoice no longer exists, skipping export", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get invoice from storage: %w", err)
	}

	if err := w.exportWithRetry(ctx, invoice); err != nil {
		return fmt.Errorf("export invoice to sheets: %w", err)
	}

	return nil
}

func (w *ExportWorker) exportWithRetry(ctx context.Context, invoice core.Invoice) error {
	backoff := retry.NewExponential(time.Second)
	backoff = retry.WithCappedDuration(30*time.Second, backoff)
	backoff = retry.WithMaxRetries(w.maxRetries, backoff)

	var ref string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var appendErr error
		ref, appendErr = w.exporter.Append(ctx, invoice)
		if appendErr != nil {
			slog.WarnContext(ctx, "Sheets append failed, will retry",
				"id", invoice.ID,
				"error", appendErr)
			return retry.RetryableError(appendErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Exported invoice to sheet",
		"id", invoice.ID,
		"invoice_number", invoice.InvoiceNumber,
		"sheets_ref", ref,
		"total_cents", invoice.TotalAmount.Cents)

	return nil
}
