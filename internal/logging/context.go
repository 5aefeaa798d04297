package logging

import (
	"context"
	"log/slog"

	"loom/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEpisodeID is the standardized structured logging key for episode identifiers.
	FieldEpisodeID = "episode_id"
	// FieldSegmentKey is the standardized structured logging key for segment keys.
	FieldSegmentKey = "segment_key"
	// FieldEpisodeDate is the standardized structured logging key for episode dates (YYYY-MM-DD).
	FieldEpisodeDate = "episode_date"
	// FieldAttempt is the standardized structured logging key for 1-based claim attempts.
	FieldAttempt = "attempt"
	// FieldErrorClass is the standardized structured logging key for classified failure classes.
	FieldErrorClass = "error_class"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator next steps.
	FieldErrorHint = "error_hint"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.EpisodeIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldEpisodeID, id))
	}
	if key, ok := services.SegmentKeyFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSegmentKey, key))
	}
	if attempt, ok := services.AttemptFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldAttempt, attempt))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
