package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFormat marks payloads that are neither parseable JSON nor a
	// decompressible envelope.
	ErrFormat = errors.New("format error")
	// ErrDocumentMissing marks container files whose trailing document
	// segment is empty.
	ErrDocumentMissing = errors.New("document missing")
	// ErrValidation marks envelopes with required metadata absent.
	ErrValidation = errors.New("validation error")
	// ErrWorkerUnavailable marks offload requests that could not reach the
	// background worker. Callers recover by running the work inline.
	ErrWorkerUnavailable = errors.New("worker unavailable")
	// ErrQuotaExceeded marks local-store payloads larger than the configured
	// quota. The write is skipped, never partially applied.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrCompressionUnsupported marks hosts without a working compression
	// transform. Output falls back to the uncompressed encoding.
	ErrCompressionUnsupported = errors.New("compression unsupported")
	// ErrTransient marks failures with no more specific classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRecoverable reports whether the error carries a marker with a defined
// fallback. Recoverable failures are handled locally (inline execution,
// uncompressed output, skipped write) and never surface to users.
func IsRecoverable(err error) bool {
	switch {
	case errors.Is(err, ErrWorkerUnavailable),
		errors.Is(err, ErrCompressionUnsupported),
		errors.Is(err, ErrQuotaExceeded):
		return true
	default:
		return false
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
