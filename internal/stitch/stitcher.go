package stitch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"loom/internal/blob"
	"loom/internal/config"
	"loom/internal/lease"
	"loom/internal/logging"
	"loom/internal/media/ffmpeg"
	"loom/internal/media/ffprobe"
)

// Result summarizes one stitched episode.
type Result struct {
	EpisodeDate     string
	StoragePath     string
	DurationSeconds float64
	SegmentCount    int
}

// Stitcher builds episode artifacts from ready segments.
type Stitcher struct {
	cfg    *config.Config
	store  *lease.Store
	blobs  blob.Store
	logger *slog.Logger
}

// New creates a stitcher.
func New(cfg *config.Config, store *lease.Store, blobs blob.Store, logger *slog.Logger) *Stitcher {
	return &Stitcher{
		cfg:    cfg,
		store:  store,
		blobs:  blobs,
		logger: logging.NewComponentLogger(logger, "stitch"),
	}
}

// StitchEpisode assembles the episode for a date: it validates readiness,
// pulls every segment artifact, concatenates them in canonical order with
// stream copy, measures the result, and uploads the episode artifact. The
// upload is idempotent, so re-stitching a date replaces the episode.
func (s *Stitcher) StitchEpisode(ctx context.Context, episodeDate string) (Result, error) {
	required := s.cfg.Program.RequiredSegments
	jobs, err := s.store.JobsForDate(ctx, episodeDate, required...)
	if err != nil {
		return Result{}, fmt.Errorf("load jobs for %s: %w", episodeDate, err)
	}
	plan, err := BuildPlan(episodeDate, required, jobs)
	if err != nil {
		return Result{}, err
	}

	workDir, err := os.MkdirTemp(s.cfg.Paths.WorkDir, "stitch-"+episodeDate+"-*")
	if err != nil {
		return Result{}, fmt.Errorf("create stitch workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputs, err := s.downloadSegments(ctx, workDir, plan)
	if err != nil {
		return Result{}, err
	}

	episodeFile := filepath.Join(workDir, "episode.mp3")
	if err := ffmpeg.Concat(ctx, s.cfg.FFmpegBinary(), workDir, inputs, episodeFile); err != nil {
		return Result{}, fmt.Errorf("concatenate %s: %w", episodeDate, err)
	}

	duration, err := ffprobe.FileDuration(ctx, s.cfg.FFprobeBinary(), episodeFile)
	if err != nil {
		return Result{}, fmt.Errorf("measure episode %s: %w", episodeDate, err)
	}

	payload, err := os.ReadFile(episodeFile)
	if err != nil {
		return Result{}, fmt.Errorf("read stitched episode: %w", err)
	}
	storagePath := blob.EpisodePath(s.cfg.Program.Slug, episodeDate)
	if err := s.blobs.Upload(ctx, storagePath, payload); err != nil {
		return Result{}, fmt.Errorf("upload episode %s: %w", episodeDate, err)
	}

	s.logger.InfoContext(ctx, "episode stitched",
		logging.String(logging.FieldEpisodeDate, episodeDate),
		logging.String("storage_path", storagePath),
		logging.Float64("duration_seconds", duration),
		logging.Int("segments", len(plan.Entries)))

	return Result{
		EpisodeDate:     episodeDate,
		StoragePath:     storagePath,
		DurationSeconds: duration,
		SegmentCount:    len(plan.Entries),
	}, nil
}

// downloadSegments pulls every plan entry into the workdir concurrently and
// returns local paths in plan order.
func (s *Stitcher) downloadSegments(ctx context.Context, workDir string, plan Plan) ([]string, error) {
	inputs := make([]string, len(plan.Entries))
	errs := make([]error, len(plan.Entries))

	var wg sync.WaitGroup
	for i, entry := range plan.Entries {
		wg.Add(1)
		go func(i int, entry PlanEntry) {
			defer wg.Done()
			payload, err := s.blobs.Download(ctx, entry.StoragePath)
			if err != nil {
				errs[i] = fmt.Errorf("download %s: %w", entry.SegmentKey, err)
				return
			}
			local := filepath.Join(workDir, fmt.Sprintf("%02d-%s.mp3", i, entry.SegmentKey))
			if err := os.WriteFile(local, payload, 0o644); err != nil {
				errs[i] = fmt.Errorf("stage %s: %w", entry.SegmentKey, err)
				return
			}
			inputs[i] = local
		}(i, entry)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return inputs, nil
}
