// Package ocr provides the vision OCR adapter: it submits rendered PDFs
// and returns transcribed text, a confidence score and the billable page
// count.
package ocr

import (
	"context"
	"errors"
	"fmt"
)

// Result is the outcome of a successful extraction.
type Result struct {
	// Text is the transcribed content of the document.
	Text string `json:"text"`

	// Confidence is the provider's confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// PageCount is the number of pages processed; the quota ledger is
	// debited by this amount.
	PageCount int `json:"page_count"`
}

// Extractor is the OCR adapter contract.
type Extractor interface {
	// Extract transcribes a rendered PDF. Failures are either
	// *TransientError (retryable) or *PermanentError (do not retry).
	Extract(ctx context.Context, pdf []byte) (*Result, error)
}

// TransientError marks a retryable failure (network, 5xx, rate limit).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient ocr error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a non-retryable failure (malformed input, auth,
// provider-side rejection).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent ocr error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
