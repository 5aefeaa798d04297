// Package retry classifies synthesis failures and decides whether a job
// earns another attempt.
package retry

import (
	"errors"
	"strings"
	"time"

	"loom/internal/services"
)

// Error classes recorded on failed jobs. Quality gate rejections collapse to
// the single qa_failure class; the granular check class stays in the message.
const (
	ClassRateLimited = "rate_limited"
	ClassTimeout     = "timeout"
	ClassNetwork     = "network"
	ClassQAFailure   = "qa_failure"
	ClassConfig      = "config"
	ClassWorkerError = "worker_error"
)

// MaxAttempts is the ceiling on synthesis attempts per job arm cycle.
const MaxAttempts = 3

// backoffs holds the delay applied after the Nth failed attempt.
var backoffs = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
}

// Classify maps a failure to an error class. Matching is ordered: rate
// limiting beats timeout beats network, so an error mentioning both "429"
// and "timeout" counts as rate limited.
func Classify(err error) string {
	if err == nil {
		return ClassWorkerError
	}

	var qa interface{ QAClass() string }
	if errors.As(err, &qa) {
		return ClassQAFailure
	}
	if errors.Is(err, services.ErrConfiguration) {
		return ClassConfig
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "too many requests"):
		return ClassRateLimited
	case errors.Is(err, services.ErrTimeout) || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "etimedout"):
		return ClassTimeout
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection") || strings.Contains(msg, "fetch failed") || strings.Contains(msg, "no such host") || strings.Contains(msg, "econnre"):
		return ClassNetwork
	case strings.HasPrefix(msg, "qa_"):
		return ClassQAFailure
	default:
		return ClassWorkerError
	}
}

// Retryable reports whether an error class ever earns another attempt.
// Quality failures and worker errors are deterministic, so retrying them
// burns attempts without changing the outcome.
func Retryable(class string) bool {
	switch class {
	case ClassRateLimited, ClassTimeout, ClassNetwork:
		return true
	default:
		return false
	}
}

// Decision is the outcome of the retry policy for one failed attempt.
type Decision struct {
	// Retry reports whether the job should be re-armed.
	Retry bool
	// RetryAt is the earliest instant a new claim may succeed. Zero when
	// Retry is false.
	RetryAt time.Time
}

// Decide applies the retry policy after a failed attempt. attempt is the
// 1-based attempt number that just failed.
func Decide(attempt int, class string, now time.Time) Decision {
	if !Retryable(class) {
		return Decision{}
	}
	if attempt >= MaxAttempts {
		return Decision{}
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffs) {
		idx = len(backoffs) - 1
	}
	return Decision{Retry: true, RetryAt: now.Add(backoffs[idx])}
}
