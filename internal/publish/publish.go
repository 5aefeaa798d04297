// Package publish implements the readiness gate consulted before an episode
// is handed to distribution.
package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loom/internal/blob"
	"loom/internal/config"
	"loom/internal/lease"
)

// NotReadyError reports every reason an episode cannot be published. The
// caller gets the complete list in one pass instead of fixing blockers one
// probe at a time.
type NotReadyError struct {
	EpisodeDate     string
	MissingSegments []string
	SegmentsNotDone []string
	ArtifactMissing bool
}

func (e *NotReadyError) Error() string {
	var parts []string
	if len(e.MissingSegments) > 0 {
		parts = append(parts, "missing segments: "+strings.Join(e.MissingSegments, ", "))
	}
	if len(e.SegmentsNotDone) > 0 {
		parts = append(parts, "segments not ready: "+strings.Join(e.SegmentsNotDone, ", "))
	}
	if e.ArtifactMissing {
		parts = append(parts, "episode artifact not found")
	}
	if len(parts) == 0 {
		parts = append(parts, "unspecified")
	}
	return fmt.Sprintf("episode %s is not publishable: %s", e.EpisodeDate, strings.Join(parts, "; "))
}

// Gate evaluates publish readiness for episode dates.
type Gate struct {
	cfg   *config.Config
	store *lease.Store
	blobs blob.Store
}

// NewGate creates a publish gate.
func NewGate(cfg *config.Config, store *lease.Store, blobs blob.Store) *Gate {
	return &Gate{cfg: cfg, store: store, blobs: blobs}
}

// AssertPublishable verifies that every required segment for the date is
// ready and the stitched episode artifact exists. The artifact probe is
// time-boxed so a slow store cannot stall the caller.
func (g *Gate) AssertPublishable(ctx context.Context, episodeDate string) error {
	required := g.cfg.Program.RequiredSegments
	jobs, err := g.store.JobsForDate(ctx, episodeDate, required...)
	if err != nil {
		return fmt.Errorf("load jobs for %s: %w", episodeDate, err)
	}

	byKey := make(map[string]*lease.Job, len(jobs))
	for _, job := range jobs {
		byKey[job.SegmentKey] = job
	}

	notReady := &NotReadyError{EpisodeDate: episodeDate}
	for _, key := range required {
		job, ok := byKey[key]
		if !ok {
			notReady.MissingSegments = append(notReady.MissingSegments, key)
			continue
		}
		if job.Status != lease.JobReady || strings.TrimSpace(job.AudioStoragePath) == "" {
			notReady.SegmentsNotDone = append(notReady.SegmentsNotDone, fmt.Sprintf("%s (%s)", key, job.Status))
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, g.probeLimit())
	defer cancel()
	exists, err := g.blobs.Exists(probeCtx, blob.EpisodePath(g.cfg.Program.Slug, episodeDate))
	if err != nil {
		return fmt.Errorf("probe episode artifact for %s: %w", episodeDate, err)
	}
	if !exists {
		notReady.ArtifactMissing = true
	}

	if len(notReady.MissingSegments) > 0 || len(notReady.SegmentsNotDone) > 0 || notReady.ArtifactMissing {
		return notReady
	}
	return nil
}

func (g *Gate) probeLimit() time.Duration {
	if g.cfg.Workflow.ExistenceProbeLimit > 0 {
		return time.Duration(g.cfg.Workflow.ExistenceProbeLimit) * time.Second
	}
	return 10 * time.Second
}
