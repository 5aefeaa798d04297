package lease

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// JobStatus represents the lifecycle of a segment audio job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobGenerating JobStatus = "generating"
	JobReady      JobStatus = "ready"
	JobFailed     JobStatus = "failed"
)

var allJobStatuses = []JobStatus{JobPending, JobGenerating, JobReady, JobFailed}

// AllJobStatuses returns the ordered list of known job statuses.
func AllJobStatuses() []JobStatus {
	cp := make([]JobStatus, len(allJobStatuses))
	copy(cp, allJobStatuses)
	return cp
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allJobStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Job is one segment's audio-generation unit, persisted in SQLite.
type Job struct {
	ID                   int64
	EpisodeID            string
	SegmentKey           string
	Program              string
	EpisodeDate          string
	ScriptVersion        int
	ScriptText           string
	VoiceID              string
	ModelID              string
	Status               JobStatus
	AttemptCount         int
	JobKey               string
	AudioStoragePath     string
	AudioDurationSeconds float64
	LastErrorClass       string
	LastErrorMessage     string
	ClaimedAt            *time.Time
	RetryAt              *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Fingerprint derives the job key for the row's current script and voice
// configuration. A claim whose stored key no longer matches this value is
// working against an obsolete script version.
func (j Job) Fingerprint() string {
	return BuildJobKey(j.EpisodeID, j.SegmentKey, j.ScriptVersion, j.VoiceID, j.ModelID)
}

// HasVoiceConfig reports whether the upstream editorial pipeline supplied the
// TTS voice and model this job needs.
func (j Job) HasVoiceConfig() bool {
	return strings.TrimSpace(j.VoiceID) != "" && strings.TrimSpace(j.ModelID) != ""
}

// BuildJobKey builds the deterministic fingerprint identifying one synthesis
// of one script version with one voice configuration.
func BuildJobKey(episodeID, segmentKey string, scriptVersion int, voiceID, modelID string) string {
	return fmt.Sprintf("%s::%s::v%d::%s::%s", episodeID, segmentKey, scriptVersion, voiceID, modelID)
}

// EncodeJobKey makes a job key safe for use as a storage path component.
// Query escaping is used because it encodes the :: separators, which path
// escaping leaves intact.
func EncodeJobKey(jobKey string) string {
	return url.QueryEscape(jobKey)
}

// SegmentScript is the upstream editorial signal that a segment's script is
// approved and its audio job should become pending.
type SegmentScript struct {
	EpisodeID     string
	SegmentKey    string
	Program       string
	EpisodeDate   string
	ScriptVersion int
	ScriptText    string
	VoiceID       string
	ModelID       string
}

// Claim is a successfully acquired lease on a job, carrying the row snapshot
// taken at claim time and the 1-based attempt number.
type Claim struct {
	Job     Job
	Attempt int
}

// RunStatus represents the lifecycle of a batch run lease.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunKind identifies the scheduled batch process a lease guards.
type RunKind string

const (
	RunWeeklyScripts RunKind = "weekly_scripts"
	RunDailyStitch   RunKind = "daily_stitch"
)

// BatchRun is a coarse-grained lease guaranteeing one scheduled batch process
// per logical work window.
type BatchRun struct {
	ID           string
	Program      string
	StartDate    string
	WindowDays   int
	Kind         RunKind
	Status       RunStatus
	TriggeredBy  string
	ClaimedAt    time.Time
	CompletedAt  *time.Time
	OutputJSON   string
	ErrorMessage string
}

// Stats aggregates job counts per lifecycle state.
type Stats struct {
	Total      int
	Pending    int
	Generating int
	Ready      int
	Failed     int
}
