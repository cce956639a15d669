package pdfview

import (
	"errors"
	"fmt"
)

// Common errors returned by Document operations.
var (
	// ErrClosed is returned by operations on a closed Document.
	ErrClosed = errors.New("pdfview: document closed")

	// ErrEmptyDocument is returned when a source reports no pages.
	ErrEmptyDocument = errors.New("pdfview: document has no pages")

	// ErrStateMismatch is returned when restoring a State saved for
	// another document.
	ErrStateMismatch = errors.New("pdfview: state belongs to another document")

	// ErrPageOutOfRange is returned for page indexes outside the document.
	ErrPageOutOfRange = errors.New("pdfview: page index out of range")
)

// OpenError reports that a document could not be opened. It is returned
// once, after every attempt failed; no rendering is started.
type OpenError struct {
	URI      string
	Attempts int
	Err      error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("pdfview: open %q failed after %d attempt(s): %v", e.URI, e.Attempts, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}
