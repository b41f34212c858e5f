package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is fatal and detected pre-flight.
	ErrConfiguration = errors.New("configuration error")
	// ErrEmbeddingProvider is a per-document, recoverable failure of the
	// external embedding provider; the document is skipped and counted.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrIO covers failures of the input/output streams. Fatal; partial
	// output stays flushed up to the last successful write.
	ErrIO = errors.New("io error")
	// ErrInvariant signals an implementation bug (for example a fingerprint
	// mapping to two different normalized texts), never an expected runtime
	// condition.
	ErrInvariant = errors.New("internal invariant violation")
	// ErrTemporary marks retryable transport failures.
	ErrTemporary = errors.New("temporary failure")
	// ErrRunNotFound is returned when a stored run report does not exist.
	ErrRunNotFound = errors.New("run not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// StreamError carries the offset of the last successfully processed document
// so a caller can resume after a fatal stream failure.
type StreamError struct {
	Offset int64
	Err    error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream aborted after offset %d: %v", e.Offset, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

type errUnknownMethod string

func (e errUnknownMethod) Error() string {
	return fmt.Sprintf("unknown method %q (want exact, semantic, both or none)", string(e))
}
