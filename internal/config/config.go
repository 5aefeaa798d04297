package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	StorageDir string `toml:"storage_dir"`
	WorkDir    string `toml:"work_dir"`
}

// Program identifies the show whose episodes this pipeline assembles.
type Program struct {
	Slug string `toml:"slug"`
	// RequiredSegments lists segment keys in stitch order. The order is part
	// of the episode contract, not a display preference.
	RequiredSegments []string `toml:"required_segments"`
}

// TTS contains configuration for the text-to-speech service.
type TTS struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Workflow contains daemon timing and batching configuration.
type Workflow struct {
	PollInterval        int `toml:"poll_interval"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
	WorkerBatchLimit    int `toml:"worker_batch_limit"`
	JobLeaseTTLMinutes  int `toml:"job_lease_ttl_minutes"`
	RunLeaseTTLMinutes  int `toml:"run_lease_ttl_minutes"`
	StitchInterval      int `toml:"stitch_interval"`
	StitchScanLimit     int `toml:"stitch_scan_limit"`
	StitchLimit         int `toml:"stitch_limit"`
	ExistenceProbeLimit int `toml:"existence_probe_limit"`
}

// SegmentRule holds per-segment-kind quality thresholds.
type SegmentRule struct {
	MinWords   int     `toml:"min_words"`
	MinSeconds float64 `toml:"min_seconds"`
	MaxSeconds float64 `toml:"max_seconds"`
}

// Quality contains audio quality gate thresholds.
type Quality struct {
	MinBytes                 int64                  `toml:"min_bytes"`
	MaxLeadingSilenceSeconds float64                `toml:"max_leading_silence_seconds"`
	Segments                 map[string]SegmentRule `toml:"segments"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for loom.
//
// Sections by subsystem:
//   - Paths: data, log, blob storage, and scratch directories
//   - Program: program slug and required segment ordering
//   - TTS: synthesis service connection settings
//   - Workflow: polling intervals, lease TTLs, batch limits
//   - Quality: audio QA thresholds per segment kind
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Program  Program  `toml:"program"`
	TTS      TTS      `toml:"tts"`
	Workflow Workflow `toml:"workflow"`
	Quality  Quality  `toml:"quality"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/loom/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("loom.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	for _, field := range []*string{&c.Paths.DataDir, &c.Paths.LogDir, &c.Paths.StorageDir, &c.Paths.WorkDir} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	c.Program.Slug = strings.ToLower(strings.TrimSpace(c.Program.Slug))
	c.TTS.BaseURL = strings.TrimRight(strings.TrimSpace(c.TTS.BaseURL), "/")
	return nil
}

// EnsureDirectories creates the directories daemon operation requires.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.StorageDir, c.Paths.WorkDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for stitching and silence detection.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// SegmentRuleFor returns the quality thresholds for a segment kind, falling
// back to the body-segment rule for unknown keys.
func (c *Config) SegmentRuleFor(segmentKey string) SegmentRule {
	if rule, ok := c.Quality.Segments[segmentKey]; ok {
		return rule
	}
	return c.Quality.Segments[SegmentMainThemes]
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
