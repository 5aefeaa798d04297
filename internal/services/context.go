package services

import "context"

type contextKey string

const (
	episodeIDKey  contextKey = "episode_id"
	segmentKeyKey contextKey = "segment_key"
	attemptKey    contextKey = "attempt"
	requestIDKey  contextKey = "request_id"
)

// WithJob annotates context with the identity of the segment job being processed.
func WithJob(ctx context.Context, episodeID, segmentKey string) context.Context {
	if episodeID != "" {
		ctx = context.WithValue(ctx, episodeIDKey, episodeID)
	}
	if segmentKey != "" {
		ctx = context.WithValue(ctx, segmentKeyKey, segmentKey)
	}
	return ctx
}

// EpisodeIDFromContext extracts the episode identifier if present.
func EpisodeIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(episodeIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// SegmentKeyFromContext extracts the segment key if present.
func SegmentKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(segmentKeyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithAttempt annotates context with the 1-based claim attempt number.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	if attempt <= 0 {
		return ctx
	}
	return context.WithValue(ctx, attemptKey, attempt)
}

// AttemptFromContext extracts the claim attempt number if present.
func AttemptFromContext(ctx context.Context) (int, bool) {
	if v, ok := ctx.Value(attemptKey).(int); ok && v > 0 {
		return v, true
	}
	return 0, false
}

// WithRequestID annotates context with a correlation identifier for one poll cycle.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
