// Package ffmpeg shells out to ffmpeg for silence analysis and episode
// concatenation.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// silenceFilter matches the detection profile used for segment QA:
	// anything quieter than -35dB lasting at least 0.35s counts as silence.
	silenceFilter = "silencedetect=noise=-35dB:d=0.35"
	// leadingSilenceEpsilonSeconds tolerates encoder padding when deciding
	// whether a detected silence window starts at the head of the file.
	leadingSilenceEpsilonSeconds = 0.05
)

// DetectLeadingSilence measures how much silence opens the audio file. It
// returns 0 when the file starts with audible content.
func DetectLeadingSilence(ctx context.Context, binary, path string) (float64, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("ffmpeg silencedetect: empty path")
	}

	// silencedetect reports through the log stream, so a failing exit code
	// still usually carries usable output.
	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-nostats", "-i", path, "-af", silenceFilter, "-f", "null", "-")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffmpeg silencedetect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return parseLeadingSilence(string(output)), nil
}

// parseLeadingSilence scans silencedetect log output. Leading silence exists
// only when the first detected window starts at (or within epsilon of) zero;
// its length is that window's silence_end.
func parseLeadingSilence(output string) float64 {
	var sawLeadingStart bool
	for _, line := range strings.Split(output, "\n") {
		if idx := strings.Index(line, "silence_start:"); idx >= 0 {
			value := firstFloat(line[idx+len("silence_start:"):])
			if value > leadingSilenceEpsilonSeconds {
				return 0
			}
			sawLeadingStart = true
			continue
		}
		if !sawLeadingStart {
			continue
		}
		if idx := strings.Index(line, "silence_end:"); idx >= 0 {
			return firstFloat(line[idx+len("silence_end:"):])
		}
	}
	return 0
}

func firstFloat(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	value, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "|"), 64)
	if err != nil {
		return 0
	}
	return value
}

// Concat joins the input files into outputPath using the concat demuxer with
// stream copy, so segment audio is never re-encoded. The list file lives in
// workDir and is removed afterwards.
func Concat(ctx context.Context, binary, workDir string, inputs []string, outputPath string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if len(inputs) == 0 {
		return errors.New("ffmpeg concat: no inputs")
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("ffmpeg concat: empty output path")
	}

	list, err := os.CreateTemp(workDir, "concat-*.txt")
	if err != nil {
		return fmt.Errorf("ffmpeg concat: list file: %w", err)
	}
	listPath := list.Name()
	defer os.Remove(listPath)

	var builder strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			list.Close()
			return fmt.Errorf("ffmpeg concat: resolve %s: %w", input, err)
		}
		fmt.Fprintf(&builder, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if _, err := list.WriteString(builder.String()); err != nil {
		list.Close()
		return fmt.Errorf("ffmpeg concat: write list: %w", err)
	}
	if err := list.Close(); err != nil {
		return fmt.Errorf("ffmpeg concat: close list: %w", err)
	}

	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-nostats", "-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", outputPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
