package sheets

import (
	"context"

	"hogar/internal/core"
)

// Ports for outbound adapters.
type (
	// InvoiceExporter appends a stored invoice to the household spreadsheet.
	InvoiceExporter interface {
		Append(ctx context.Context, inv core.Invoice) (rowRef string, err error)
	}
)
