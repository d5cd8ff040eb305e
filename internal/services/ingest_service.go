// Package services orchestrates the application's use cases across storage,
// extraction, and messaging.
package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"hogar/internal/amqp"
	"hogar/internal/core"
	"hogar/internal/extract"
	"hogar/internal/ingest"
	"hogar/internal/storage"
)

// Document is one uploaded bill, identified by its upload filename.
type Document struct {
	Name    string
	Content []byte
}

// DocumentOutcome reports what happened to a single document in a batch.
// Exactly one of InvoiceID or Err is meaningful; a batch result carries one
// outcome per input document, in input order.
type DocumentOutcome struct {
	Name      string
	InvoiceID int64
	Invoice   core.Invoice
	Err       error
}

// IngestService turns uploaded bill documents into stored invoices.
type IngestService struct {
	extractor      extract.Service
	storage        *storage.SQLiteRepository
	amqpClient     *amqp.Client
	extractTimeout time.Duration
	concurrency    int
}

func NewIngestService(extractor extract.Service, storage *storage.SQLiteRepository, amqpClient *amqp.Client, extractTimeout time.Duration, concurrency int) *IngestService {
	if concurrency < 1 {
		concurrency = 1
	}
	if extractTimeout <= 0 {
		extractTimeout = 30 * time.Second
	}
	return &IngestService{
		extractor:      extractor,
		storage:        storage,
		amqpClient:     amqpClient,
		extractTimeout: extractTimeout,
		concurrency:    concurrency,
	}
}

// IngestBatch processes every document and reports a per-document outcome.
// One unreadable or invalid document never blocks the rest of the batch; the
// error it produced travels in its own outcome slot.
func (s *IngestService) IngestBatch(ctx context.Context, docs []Document) []DocumentOutcome {
	outcomes := make([]DocumentOutcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, doc := range docs {
		g.Go(func() error {
			outcomes[i] = s.ingestOne(gctx, doc)
			return nil
		})
	}
	// Workers never return errors; failures live in the outcome slots.
	_ = g.Wait()

	saved := 0
	for _, o := range outcomes {
		if o.Err == nil {
			saved++
		}
	}
	slog.InfoContext(ctx, "Ingest batch finished",
		"documents", len(docs),
		"saved", saved,
		"failed", len(docs)-saved)

	return outcomes
}

func (s *IngestService) ingestOne(ctx context.Context, doc Document) DocumentOutcome {
	outcome := DocumentOutcome{Name: doc.Name}

	// A single stuck OCR call must not hold the whole batch hostage.
	ctx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()

	text, err := s.extractor.Text(ctx, bytes.NewReader(doc.Content))
	if err != nil {
		outcome.Err = fmt.Errorf("extract text from %s: %w", doc.Name, err)
		return outcome
	}

	inv := ingest.ParseText(text, time.Now())
	if err := inv.Validate(); err != nil {
		outcome.Err = fmt.Errorf("parse %s: %w", doc.Name, err)
		return outcome
	}

	stored, err := s.storage.InsertInvoice(ctx, inv)
	if err != nil {
		outcome.Err = fmt.Errorf("save invoice from %s: %w", doc.Name, err)
		return outcome
	}

	if inv.ElecKwhSource == core.KwhPositional || inv.GasKwhSource == core.KwhPositional {
		slog.WarnContext(ctx, "Consumption figures extracted by position, verify manually",
			"document", doc.Name,
			"invoice_number", stored.InvoiceNumber)
	}

	s.publishExportMessage(ctx, stored.ID)

	outcome.InvoiceID = stored.ID
	outcome.Invoice = stored
	return outcome
}

func (s *IngestService) publishExportMessage(ctx context.Context, id int64) {
	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping export message")
		return
	}
	if err := s.amqpClient.PublishInvoiceExport(ctx, id); err != nil {
		// The invoice is saved locally; export is best-effort.
		slog.ErrorContext(ctx, "Failed to publish export message", "id", id, "error", err)
	}
}
