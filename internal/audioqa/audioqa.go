// Package audioqa implements the quality gate that stands between synthesis
// and a ready segment. Every check is deterministic for a given payload, so
// a gate failure is terminal: retrying the same audio cannot change the
// verdict.
package audioqa

import (
	"context"
	"fmt"
	"strings"

	"loom/internal/config"
	"loom/internal/media/ffmpeg"
	"loom/internal/media/ffprobe"
)

// Quality failure classes carried in gate error messages. The retry policy
// records every gate rejection under the aggregate qa_failure class.
const (
	ClassScriptShort = "qa_script_short"
	ClassEmpty       = "qa_empty"
	ClassTooSmall    = "qa_too_small"
	ClassTooShort    = "qa_too_short"
	ClassTooLong     = "qa_too_long"
	ClassSilence     = "qa_silence"
)

// Error is a quality gate rejection carrying its class.
type Error struct {
	Class   string
	Message string
}

func (e *Error) Error() string {
	return e.Class + ": " + e.Message
}

// QAClass returns the failure class for error classification.
func (e *Error) QAClass() string {
	return e.Class
}

func fail(class, format string, args ...any) error {
	return &Error{Class: class, Message: fmt.Sprintf(format, args...)}
}

// Measurement is the audio evidence the gate evaluates alongside the raw
// payload.
type Measurement struct {
	SizeBytes             int64
	DurationSeconds       float64
	LeadingSilenceSeconds float64
}

// CheckScript verifies the script clears the word-count floor for its
// segment kind. Running it before synthesis avoids paying for audio that
// cannot pass.
func CheckScript(scriptText string, rule config.SegmentRule) error {
	words := len(strings.Fields(scriptText))
	if words < rule.MinWords {
		return fail(ClassScriptShort, "script has %d words, need at least %d", words, rule.MinWords)
	}
	return nil
}

// CheckPayload verifies the synthesized payload is plausibly real audio.
func CheckPayload(m Measurement, minBytes int64) error {
	if m.SizeBytes == 0 {
		return fail(ClassEmpty, "synthesis returned an empty payload")
	}
	if m.SizeBytes < minBytes {
		return fail(ClassTooSmall, "payload is %d bytes, floor is %d", m.SizeBytes, minBytes)
	}
	return nil
}

// CheckDuration verifies the measured duration sits inside the segment
// kind's bounds.
func CheckDuration(m Measurement, rule config.SegmentRule) error {
	if m.DurationSeconds < rule.MinSeconds {
		return fail(ClassTooShort, "duration %.2fs is under the %.2fs floor", m.DurationSeconds, rule.MinSeconds)
	}
	if m.DurationSeconds > rule.MaxSeconds {
		return fail(ClassTooLong, "duration %.2fs exceeds the %.2fs ceiling", m.DurationSeconds, rule.MaxSeconds)
	}
	return nil
}

// CheckLeadingSilence verifies the segment does not open with dead air
// beyond the configured tolerance.
func CheckLeadingSilence(m Measurement, maxSeconds float64) error {
	if m.LeadingSilenceSeconds > maxSeconds {
		return fail(ClassSilence, "leading silence %.2fs exceeds %.2fs", m.LeadingSilenceSeconds, maxSeconds)
	}
	return nil
}

// Gate runs audio checks in order and stops at the first failure, so a job
// record carries the single most fundamental defect.
type Gate struct {
	cfg *config.Config
}

// NewGate builds a quality gate over the configured thresholds.
func NewGate(cfg *config.Config) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate measures a synthesized payload with ffprobe and ffmpeg and runs
// the full check sequence for the segment kind. It returns the measurement
// for bookkeeping alongside any gate error.
func (g *Gate) Evaluate(ctx context.Context, segmentKey string, payload []byte) (Measurement, error) {
	rule := g.cfg.SegmentRuleFor(segmentKey)
	m := Measurement{SizeBytes: int64(len(payload))}

	if err := CheckPayload(m, g.cfg.Quality.MinBytes); err != nil {
		return m, err
	}

	tmp, cleanup, err := spillPayload(g.cfg.Paths.WorkDir, payload)
	if err != nil {
		return m, err
	}
	defer cleanup()

	duration, err := ffprobe.FileDuration(ctx, g.cfg.FFprobeBinary(), tmp)
	if err != nil {
		return m, fmt.Errorf("measure duration: %w", err)
	}
	m.DurationSeconds = duration
	if err := CheckDuration(m, rule); err != nil {
		return m, err
	}

	silence, err := ffmpeg.DetectLeadingSilence(ctx, g.cfg.FFmpegBinary(), tmp)
	if err != nil {
		return m, fmt.Errorf("measure leading silence: %w", err)
	}
	m.LeadingSilenceSeconds = silence
	if err := CheckLeadingSilence(m, g.cfg.Quality.MaxLeadingSilenceSeconds); err != nil {
		return m, err
	}

	return m, nil
}
