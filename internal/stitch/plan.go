// Package stitch assembles ready segment audio into episode artifacts.
package stitch

import (
	"fmt"
	"sort"
	"strings"

	"loom/internal/lease"
)

// PlanEntry is one segment slot in the stitch order with its resolved job.
type PlanEntry struct {
	SegmentKey  string
	StoragePath string
	Duration    float64
}

// Plan is the validated, ordered set of segment artifacts for one episode
// date.
type Plan struct {
	EpisodeDate string
	Entries     []PlanEntry
}

// TotalDuration sums the recorded segment durations.
func (p Plan) TotalDuration() float64 {
	var total float64
	for _, entry := range p.Entries {
		total += entry.Duration
	}
	return total
}

// NotReadyError reports every segment blocking a stitch, not just the first,
// so one status check tells the operator the full picture.
type NotReadyError struct {
	EpisodeDate string
	Missing     []string
	NotReady    []string
}

func (e *NotReadyError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing segments: "+strings.Join(e.Missing, ", "))
	}
	if len(e.NotReady) > 0 {
		parts = append(parts, "segments not ready: "+strings.Join(e.NotReady, ", "))
	}
	return fmt.Sprintf("episode %s cannot be stitched: %s", e.EpisodeDate, strings.Join(parts, "; "))
}

// BuildPlan validates that every required segment for the date is ready and
// returns the entries in the canonical stitch order. Jobs outside the
// required set are ignored.
func BuildPlan(episodeDate string, required []string, jobs []*lease.Job) (Plan, error) {
	byKey := make(map[string]*lease.Job, len(jobs))
	for _, job := range jobs {
		byKey[job.SegmentKey] = job
	}

	plan := Plan{EpisodeDate: episodeDate}
	notReady := &NotReadyError{EpisodeDate: episodeDate}
	for _, key := range required {
		job, ok := byKey[key]
		if !ok {
			notReady.Missing = append(notReady.Missing, key)
			continue
		}
		if job.Status != lease.JobReady || strings.TrimSpace(job.AudioStoragePath) == "" {
			notReady.NotReady = append(notReady.NotReady, fmt.Sprintf("%s (%s)", key, job.Status))
			continue
		}
		plan.Entries = append(plan.Entries, PlanEntry{
			SegmentKey:  key,
			StoragePath: job.AudioStoragePath,
			Duration:    job.AudioDurationSeconds,
		})
	}

	if len(notReady.Missing) > 0 || len(notReady.NotReady) > 0 {
		sort.Strings(notReady.Missing)
		return Plan{}, notReady
	}
	return plan, nil
}
