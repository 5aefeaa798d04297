package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Program.Slug) == "" {
		problems = append(problems, "program.slug must not be empty")
	}
	if len(c.Program.RequiredSegments) == 0 {
		problems = append(problems, "program.required_segments must list at least one segment")
	}
	seen := make(map[string]struct{}, len(c.Program.RequiredSegments))
	for _, key := range c.Program.RequiredSegments {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			problems = append(problems, "program.required_segments contains an empty key")
			continue
		}
		if _, dup := seen[trimmed]; dup {
			problems = append(problems, fmt.Sprintf("program.required_segments lists %q twice", trimmed))
		}
		seen[trimmed] = struct{}{}
	}

	if strings.TrimSpace(c.TTS.BaseURL) == "" {
		problems = append(problems, "tts.base_url must not be empty")
	}
	if c.TTS.RequestTimeout <= 0 {
		problems = append(problems, "tts.request_timeout must be positive")
	}

	if c.Workflow.PollInterval <= 0 {
		problems = append(problems, "workflow.poll_interval must be positive")
	}
	if c.Workflow.WorkerBatchLimit <= 0 {
		problems = append(problems, "workflow.worker_batch_limit must be positive")
	}
	if c.Workflow.JobLeaseTTLMinutes <= 0 {
		problems = append(problems, "workflow.job_lease_ttl_minutes must be positive")
	}
	if c.Workflow.RunLeaseTTLMinutes <= 0 {
		problems = append(problems, "workflow.run_lease_ttl_minutes must be positive")
	}

	if c.Quality.MinBytes <= 0 {
		problems = append(problems, "quality.min_bytes must be positive")
	}
	if c.Quality.MaxLeadingSilenceSeconds <= 0 {
		problems = append(problems, "quality.max_leading_silence_seconds must be positive")
	}
	for key, rule := range c.Quality.Segments {
		if rule.MinWords < 0 {
			problems = append(problems, fmt.Sprintf("quality.segments.%s.min_words must not be negative", key))
		}
		if rule.MinSeconds < 0 || rule.MaxSeconds <= 0 || rule.MinSeconds >= rule.MaxSeconds {
			problems = append(problems, fmt.Sprintf("quality.segments.%s duration bounds must satisfy 0 <= min < max", key))
		}
	}
	for _, key := range c.Program.RequiredSegments {
		if _, ok := c.Quality.Segments[strings.TrimSpace(key)]; !ok {
			problems = append(problems, fmt.Sprintf("quality.segments missing thresholds for required segment %q", key))
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
