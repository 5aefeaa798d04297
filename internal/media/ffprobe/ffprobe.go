// Package ffprobe shells out to ffprobe for container inspection.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Format Format `json:"format"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_entries", "format=duration,size,bit_rate,format_name", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// FileDuration probes a file and returns its duration. A zero or missing
// duration is an error; the quality gate needs a real measurement.
func FileDuration(ctx context.Context, binary, path string) (float64, error) {
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return 0, err
	}
	duration := result.DurationSeconds()
	if duration <= 0 {
		return 0, fmt.Errorf("ffprobe inspect: no duration reported for %s", path)
	}
	return duration, nil
}

// PayloadDuration measures the duration of an in-memory audio payload by
// spilling it to a scratch file first; ffprobe needs a seekable input.
func PayloadDuration(ctx context.Context, binary, workDir string, payload []byte) (float64, error) {
	if len(payload) == 0 {
		return 0, errors.New("ffprobe inspect: empty payload")
	}
	tmp, err := os.CreateTemp(workDir, "probe-*.mp3")
	if err != nil {
		return 0, fmt.Errorf("ffprobe inspect: scratch file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("ffprobe inspect: write scratch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("ffprobe inspect: close scratch file: %w", err)
	}

	return FileDuration(ctx, binary, filepath.Clean(tmpPath))
}

func parseFloat(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}
