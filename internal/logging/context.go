package logging

import (
	"log/slog"

	"context"

	"slayer/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldProjectID is the standardized structured logging key for project identifiers.
	FieldProjectID = "project_id"
	// FieldPhase is the standardized structured logging key for save phase names.
	FieldPhase = "phase"
	// FieldRequestID is the standardized structured logging key for offload request ids.
	FieldRequestID = "request_id"
)

// WithContext enriches the logger with identifiers stamped on the context by
// the services package.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	if id, ok := services.ProjectIDFromContext(ctx); ok {
		logger = logger.With(String(FieldProjectID, id))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		logger = logger.With(String(FieldPhase, phase))
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		logger = logger.With(Uint64(FieldRequestID, id))
	}
	return logger
}
