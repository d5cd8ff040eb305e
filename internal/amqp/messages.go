package amqp

import (
	"encoding/json"
	"time"
)

// InvoiceExportMessage asks the worker to export one stored invoice to the
// spreadsheet. It carries only the ID; the worker reads the full row from the
// database, so a stale message never exports stale data.
type InvoiceExportMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewInvoiceExportMessage creates an export message for a stored invoice.
func NewInvoiceExportMessage(id int64) *InvoiceExportMessage {
	return &InvoiceExportMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvoiceExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvoiceExportMessageFromJSON creates a message from JSON bytes
func InvoiceExportMessageFromJSON(data []byte) (*InvoiceExportMessage, error) {
	var msg InvoiceExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
