package examerr

import (
	"errors"
	"fmt"
)

// Error taxonomy for the exam generation pipeline. Callers classify with
// errors.Is; Transient errors are the only class the retry policy replays.
var (
	// ErrTransientBackend marks recoverable network failures from the
	// embedding backend, the vector index or the generation backend.
	ErrTransientBackend = errors.New("transient backend error")

	// ErrSchemaMismatch means an existing collection carries a different
	// vector dimension than configured. Fatal for that collection.
	ErrSchemaMismatch = errors.New("vector collection schema mismatch")

	// ErrMalformedQuestion means the generation backend returned output
	// that failed structural validation after the corrective retry.
	ErrMalformedQuestion = errors.New("malformed generated question")

	// ErrServiceNotReady rejects generation requests issued before the
	// controller reaches the ready state.
	ErrServiceNotReady = errors.New("exam service not ready")

	// ErrIngestionPartial means some chunks of a document failed to index.
	// The document is marked failed but the indexed chunks are kept.
	ErrIngestionPartial = errors.New("document partially ingested")

	// ErrNoExtractableText means the uploaded PDF produced no text.
	ErrNoExtractableText = errors.New("no extractable text found in PDF")
)

// Transient wraps err so that errors.Is(result, ErrTransientBackend) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransientBackend, err)
}

// Malformed wraps a validation failure of generated question structure.
func Malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedQuestion, reason)
}

// IsTransient reports whether err belongs to the retryable class.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientBackend)
}
