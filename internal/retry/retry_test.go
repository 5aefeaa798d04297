package retry_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"loom/internal/retry"
	"loom/internal/services"
)

type gateErr struct{ class string }

func (e gateErr) Error() string   { return e.class + ": rejected" }
func (e gateErr) QAClass() string { return e.class }

func TestClassifyOrdering(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"http 429", errors.New("synthesis failed with status 429"), retry.ClassRateLimited},
		{"rate limit text", errors.New("Rate limit exceeded for voice"), retry.ClassRateLimited},
		{"rate limit beats timeout", errors.New("429 too many requests after timeout"), retry.ClassRateLimited},
		{"timeout", errors.New("request timed out"), retry.ClassTimeout},
		{"deadline", errors.New("context deadline exceeded"), retry.ClassTimeout},
		{"wrapped timeout marker", fmt.Errorf("synth: %w", services.ErrTimeout), retry.ClassTimeout},
		{"network", errors.New("connection refused"), retry.ClassNetwork},
		{"dns", errors.New("dial tcp: lookup api: no such host"), retry.ClassNetwork},
		{"config marker", fmt.Errorf("voice missing: %w", services.ErrConfiguration), retry.ClassConfig},
		{"quality gate error", gateErr{class: "qa_too_short"}, retry.ClassQAFailure},
		{"wrapped quality gate error", fmt.Errorf("gate: %w", gateErr{class: "qa_empty"}), retry.ClassQAFailure},
		{"qa prefixed message", errors.New("qa_silence: leading silence 2.10s exceeds 1.00s"), retry.ClassQAFailure},
		{"unknown", errors.New("panic: slice bounds out of range"), retry.ClassWorkerError},
		{"nil", nil, retry.ClassWorkerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := retry.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	retryable := []string{retry.ClassRateLimited, retry.ClassTimeout, retry.ClassNetwork}
	for _, class := range retryable {
		if !retry.Retryable(class) {
			t.Errorf("expected %s retryable", class)
		}
	}
	terminal := []string{retry.ClassQAFailure, retry.ClassConfig, retry.ClassWorkerError, "qa_empty", "qa_too_small"}
	for _, class := range terminal {
		if retry.Retryable(class) {
			t.Errorf("expected %s terminal", class)
		}
	}
}

func TestDecideBackoffLadder(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		attempt int
		class   string
		retry   bool
		delay   time.Duration
	}{
		{1, retry.ClassTimeout, true, 30 * time.Second},
		{2, retry.ClassTimeout, true, 2 * time.Minute},
		{3, retry.ClassTimeout, false, 0},
		{4, retry.ClassTimeout, false, 0},
		{1, retry.ClassRateLimited, true, 30 * time.Second},
		{1, retry.ClassQAFailure, false, 0},
		{2, retry.ClassWorkerError, false, 0},
	}

	for _, tc := range cases {
		d := retry.Decide(tc.attempt, tc.class, now)
		if d.Retry != tc.retry {
			t.Errorf("Decide(%d, %s).Retry = %v, want %v", tc.attempt, tc.class, d.Retry, tc.retry)
			continue
		}
		if tc.retry {
			want := now.Add(tc.delay)
			if !d.RetryAt.Equal(want) {
				t.Errorf("Decide(%d, %s).RetryAt = %v, want %v", tc.attempt, tc.class, d.RetryAt, want)
			}
		}
	}
}
