// Package extract provides plain-text extraction from uploaded bill
// documents. The production implementation delegates to Google Cloud Vision
// document OCR; the rest of the application only sees the Service interface.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Service extracts the plain-text content of a binary document.
type Service interface {
	// Text returns the document's text representation, concatenated in
	// reading order, or an unreadable-document error.
	Text(ctx context.Context, doc io.Reader) (string, error)
}

var (
	// ErrUnreadable is returned when the document is corrupt or not a
	// format the extractor understands.
	ErrUnreadable = errors.New("unreadable document")

	// ErrTooLarge is returned when the document exceeds the extractor's
	// size limit.
	ErrTooLarge = errors.New("document exceeds size limit")

	// ErrEmptyDocument is returned when a readable document contains no text.
	ErrEmptyDocument = errors.New("document contains no text")
)

// Error wraps extraction failures with the operation that produced them.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *Error
	if errors.As(err, &ee) {
		return err
	}
	return &Error{Op: op, Err: err}
}
