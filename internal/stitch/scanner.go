package stitch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"loom/internal/blob"
	"loom/internal/config"
	"loom/internal/lease"
	"loom/internal/logging"
)

// Scanner finds episode dates whose segments are all ready and stitches
// them under the daily batch run lease.
type Scanner struct {
	cfg      *config.Config
	store    *lease.Store
	blobs    blob.Store
	stitcher *Stitcher
	logger   *slog.Logger
}

// NewScanner creates a scanner around an existing stitcher.
func NewScanner(cfg *config.Config, store *lease.Store, blobs blob.Store, stitcher *Stitcher, logger *slog.Logger) *Scanner {
	return &Scanner{
		cfg:      cfg,
		store:    store,
		blobs:    blobs,
		stitcher: stitcher,
		logger:   logging.NewComponentLogger(logger, "stitch-scanner"),
	}
}

// RunOnce performs one scan cycle: expire stale stitch runs, find stitchable
// dates, and stitch up to the configured limit. Dates whose episode artifact
// already exists are skipped without claiming a run lease. Returns the
// number of episodes stitched.
func (s *Scanner) RunOnce(ctx context.Context, triggeredBy string) (int, error) {
	expired, err := s.store.FailStaleBatchRuns(ctx, lease.RunDailyStitch, s.runLeaseTTL())
	if err != nil {
		return 0, fmt.Errorf("expire stale stitch runs: %w", err)
	}
	if expired > 0 {
		s.logger.WarnContext(ctx, "expired stale stitch runs", logging.Int64("count", expired))
	}

	dates, err := s.store.DatesWithAllSegmentsReady(ctx, s.cfg.Program.RequiredSegments, s.cfg.Workflow.StitchScanLimit)
	if err != nil {
		return 0, fmt.Errorf("scan stitchable dates: %w", err)
	}

	stitched := 0
	for _, date := range dates {
		if stitched >= s.cfg.Workflow.StitchLimit {
			break
		}
		if err := ctx.Err(); err != nil {
			return stitched, err
		}

		exists, err := s.blobs.Exists(ctx, blob.EpisodePath(s.cfg.Program.Slug, date))
		if err != nil {
			return stitched, fmt.Errorf("probe episode %s: %w", date, err)
		}
		if exists {
			continue
		}

		run, acquired, err := s.store.ClaimBatchRun(ctx, s.cfg.Program.Slug, date, 1, lease.RunDailyStitch, triggeredBy)
		if err != nil {
			return stitched, fmt.Errorf("claim stitch run for %s: %w", date, err)
		}
		if !acquired {
			s.logger.DebugContext(ctx, "stitch run already claimed",
				logging.String(logging.FieldEpisodeDate, date))
			continue
		}

		result, err := s.stitcher.StitchEpisode(ctx, date)
		if err != nil {
			s.logger.ErrorContext(ctx, "stitch failed",
				logging.String(logging.FieldEpisodeDate, date),
				logging.Error(err))
			if failErr := s.store.FailBatchRun(ctx, run.ID, err.Error()); failErr != nil {
				s.logger.ErrorContext(ctx, "record stitch failure",
					logging.String(logging.FieldEpisodeDate, date),
					logging.Error(failErr))
			}
			continue
		}

		output, _ := json.Marshal(result)
		if err := s.store.CompleteBatchRun(ctx, run.ID, string(output)); err != nil {
			s.logger.ErrorContext(ctx, "record stitch completion",
				logging.String(logging.FieldEpisodeDate, date),
				logging.Error(err))
		}
		stitched++
	}
	return stitched, nil
}

func (s *Scanner) runLeaseTTL() time.Duration {
	return time.Duration(s.cfg.Workflow.RunLeaseTTLMinutes) * time.Minute
}
