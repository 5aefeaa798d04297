package config

// Canonical segment keys. RequiredSegments defaults to these three in stitch
// order: opening, body, closing.
const (
	SegmentIntro      = "intro"
	SegmentMainThemes = "main_themes"
	SegmentClosing    = "closing"
)

const (
	defaultDataDir    = "~/.local/share/loom/data"
	defaultLogDir     = "~/.local/share/loom/logs"
	defaultStorageDir = "~/.local/share/loom/storage"
	defaultWorkDir    = "~/.local/share/loom/work"

	defaultProgramSlug = "daybreak"

	defaultTTSBaseURL        = "https://api.elevenlabs.io"
	defaultTTSRequestTimeout = 60

	defaultPollInterval        = 5
	defaultErrorRetryInterval  = 10
	defaultWorkerBatchLimit    = 5
	defaultJobLeaseTTLMinutes  = 15
	defaultRunLeaseTTLMinutes  = 150
	defaultStitchInterval      = 300
	defaultStitchScanLimit     = 30
	defaultStitchLimit         = 1
	defaultExistenceProbeLimit = 10

	defaultQualityMinBytes       = 1024
	defaultMaxLeadingSilenceSecs = 1.0

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			StorageDir: defaultStorageDir,
			WorkDir:    defaultWorkDir,
		},
		Program: Program{
			Slug:             defaultProgramSlug,
			RequiredSegments: []string{SegmentIntro, SegmentMainThemes, SegmentClosing},
		},
		TTS: TTS{
			BaseURL:        defaultTTSBaseURL,
			RequestTimeout: defaultTTSRequestTimeout,
		},
		Workflow: Workflow{
			PollInterval:        defaultPollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			WorkerBatchLimit:    defaultWorkerBatchLimit,
			JobLeaseTTLMinutes:  defaultJobLeaseTTLMinutes,
			RunLeaseTTLMinutes:  defaultRunLeaseTTLMinutes,
			StitchInterval:      defaultStitchInterval,
			StitchScanLimit:     defaultStitchScanLimit,
			StitchLimit:         defaultStitchLimit,
			ExistenceProbeLimit: defaultExistenceProbeLimit,
		},
		Quality: Quality{
			MinBytes:                 defaultQualityMinBytes,
			MaxLeadingSilenceSeconds: defaultMaxLeadingSilenceSecs,
			Segments: map[string]SegmentRule{
				SegmentIntro:      {MinWords: 40, MinSeconds: 15, MaxSeconds: 90},
				SegmentMainThemes: {MinWords: 150, MinSeconds: 60, MaxSeconds: 600},
				SegmentClosing:    {MinWords: 30, MinSeconds: 10, MaxSeconds: 75},
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
