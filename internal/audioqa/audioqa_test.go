package audioqa_test

import (
	"errors"
	"strings"
	"testing"

	"loom/internal/audioqa"
	"loom/internal/config"
	"loom/internal/retry"
)

var introRule = config.SegmentRule{MinWords: 40, MinSeconds: 15, MaxSeconds: 90}

func classOf(t *testing.T, err error) string {
	t.Helper()
	var qaErr *audioqa.Error
	if !errors.As(err, &qaErr) {
		t.Fatalf("expected *audioqa.Error, got %T: %v", err, err)
	}
	return qaErr.Class
}

func TestCheckScript(t *testing.T) {
	longEnough := strings.Repeat("word ", 40)
	if err := audioqa.CheckScript(longEnough, introRule); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}

	err := audioqa.CheckScript("too short", introRule)
	if classOf(t, err) != audioqa.ClassScriptShort {
		t.Fatalf("expected script_short, got %v", err)
	}
}

func TestCheckPayload(t *testing.T) {
	if err := audioqa.CheckPayload(audioqa.Measurement{SizeBytes: 4096}, 1024); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}

	err := audioqa.CheckPayload(audioqa.Measurement{SizeBytes: 0}, 1024)
	if classOf(t, err) != audioqa.ClassEmpty {
		t.Fatalf("expected qa_empty, got %v", err)
	}

	err = audioqa.CheckPayload(audioqa.Measurement{SizeBytes: 512}, 1024)
	if classOf(t, err) != audioqa.ClassTooSmall {
		t.Fatalf("expected qa_too_small, got %v", err)
	}
}

func TestCheckDuration(t *testing.T) {
	if err := audioqa.CheckDuration(audioqa.Measurement{DurationSeconds: 45}, introRule); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}

	err := audioqa.CheckDuration(audioqa.Measurement{DurationSeconds: 5}, introRule)
	if classOf(t, err) != audioqa.ClassTooShort {
		t.Fatalf("expected qa_too_short, got %v", err)
	}

	err = audioqa.CheckDuration(audioqa.Measurement{DurationSeconds: 120}, introRule)
	if classOf(t, err) != audioqa.ClassTooLong {
		t.Fatalf("expected qa_too_long, got %v", err)
	}
}

func TestCheckLeadingSilence(t *testing.T) {
	if err := audioqa.CheckLeadingSilence(audioqa.Measurement{LeadingSilenceSeconds: 0.4}, 1.0); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}

	err := audioqa.CheckLeadingSilence(audioqa.Measurement{LeadingSilenceSeconds: 2.5}, 1.0)
	if classOf(t, err) != audioqa.ClassSilence {
		t.Fatalf("expected qa_silence, got %v", err)
	}
}

func TestGateFailuresAreTerminal(t *testing.T) {
	for _, class := range []string{
		audioqa.ClassScriptShort,
		audioqa.ClassEmpty,
		audioqa.ClassTooSmall,
		audioqa.ClassTooShort,
		audioqa.ClassTooLong,
		audioqa.ClassSilence,
	} {
		err := &audioqa.Error{Class: class, Message: "rejected"}
		got := retry.Classify(err)
		if got != retry.ClassQAFailure {
			t.Errorf("Classify(%s) = %s, want %s", class, got, retry.ClassQAFailure)
		}
		if retry.Retryable(got) {
			t.Errorf("qa class %s must be terminal", class)
		}
		if !strings.Contains(err.Error(), class) {
			t.Errorf("message %q must keep the gate class %s", err.Error(), class)
		}
	}
}
