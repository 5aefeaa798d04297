// Package worker runs the synthesis poll loop: claim a job, synthesize its
// script, gate the audio, and commit or fail the lease.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"loom/internal/audioqa"
	"loom/internal/blob"
	"loom/internal/config"
	"loom/internal/lease"
	"loom/internal/logging"
	"loom/internal/retry"
	"loom/internal/services"
	"loom/internal/tts"
)

// Worker claims pending segment jobs and drives them to ready or failed.
type Worker struct {
	cfg    *config.Config
	store  *lease.Store
	synth  tts.Synthesizer
	blobs  blob.Store
	gate   *audioqa.Gate
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a worker.
func New(cfg *config.Config, store *lease.Store, synth tts.Synthesizer, blobs blob.Store, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:    cfg,
		store:  store,
		synth:  synth,
		blobs:  blobs,
		gate:   audioqa.NewGate(cfg),
		logger: logging.NewComponentLogger(logger, "worker"),
	}
}

// Start launches the poll loop. It returns immediately; the loop runs until
// Stop is called or the parent context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return fmt.Errorf("worker already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.stopped = make(chan struct{})

	go w.run(loopCtx)
	return nil
}

// Stop cancels the poll loop and waits for the current cycle to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	stopped := w.stopped
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stopped)

	interval := time.Duration(w.cfg.Workflow.PollInterval) * time.Second
	errorInterval := time.Duration(w.cfg.Workflow.ErrorRetryInterval) * time.Second
	if errorInterval <= 0 {
		errorInterval = interval
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next := interval
		if err := w.RunCycle(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "poll cycle failed", logging.Error(err))
			next = errorInterval
		}
		timer.Reset(next)
	}
}

// RunCycle performs one poll iteration: reclaim stale leases, then claim and
// process up to the batch limit of eligible jobs. Individual job failures
// are recorded on the job and never abort the cycle.
func (w *Worker) RunCycle(ctx context.Context) error {
	ctx = services.WithRequestID(ctx, uuid.NewString())

	reclaimed, err := w.store.RequeueStale(ctx, w.jobLeaseTTL())
	if err != nil {
		return fmt.Errorf("requeue stale jobs: %w", err)
	}
	if reclaimed > 0 {
		w.logger.WarnContext(ctx, "requeued stale jobs", logging.Int64("count", reclaimed))
	}

	candidates, err := w.store.ClaimableJobs(ctx, time.Now(), w.cfg.Workflow.WorkerBatchLimit)
	if err != nil {
		return fmt.Errorf("scan claimable jobs: %w", err)
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.processCandidate(ctx, candidate)
	}
	return nil
}

func (w *Worker) processCandidate(ctx context.Context, candidate *lease.Job) {
	jobCtx := services.WithJob(ctx, candidate.EpisodeID, candidate.SegmentKey)
	logger := logging.WithContext(jobCtx, w.logger).With(
		logging.String(logging.FieldEpisodeDate, candidate.EpisodeDate))

	// Jobs without voice configuration cannot be synthesized; claiming one
	// would burn an attempt on a failure that synthesis can never fix.
	if !candidate.HasVoiceConfig() {
		logger.WarnContext(jobCtx, "skipping job without voice configuration")
		return
	}

	claim, err := w.store.Claim(jobCtx, candidate.EpisodeID, candidate.SegmentKey, candidate.Fingerprint(), time.Now())
	if err != nil {
		logger.ErrorContext(jobCtx, "claim failed", logging.Error(err))
		return
	}
	if claim == nil {
		logger.DebugContext(jobCtx, "lost claim race")
		return
	}

	logger = logger.With(logging.Int(logging.FieldAttempt, claim.Attempt))

	// The script may have been re-versioned between the scan and the claim.
	// Synthesizing the old version would be wasted work; hand the claim back
	// so the fresh row is served on the next poll instead of after the TTL.
	if claim.Job.Fingerprint() != claim.Job.JobKey {
		logger.InfoContext(jobCtx, "job re-versioned after scan, releasing claim")
		if err := w.store.Release(jobCtx, claim.Job.EpisodeID, claim.Job.SegmentKey, claim.Job.JobKey); err != nil {
			logger.ErrorContext(jobCtx, "release claim", logging.Error(err))
		}
		return
	}

	if err := w.processClaim(jobCtx, claim); err != nil {
		w.recordFailure(jobCtx, logger, claim, err)
		return
	}
	logger.InfoContext(jobCtx, "segment ready")
}

// processClaim runs the synthesis pipeline for a held claim.
func (w *Worker) processClaim(ctx context.Context, claim *lease.Claim) error {
	job := claim.Job
	rule := w.cfg.SegmentRuleFor(job.SegmentKey)

	if err := audioqa.CheckScript(job.ScriptText, rule); err != nil {
		return err
	}

	payload, err := w.synth.Synthesize(ctx, tts.Request{
		Text:    job.ScriptText,
		VoiceID: job.VoiceID,
		ModelID: job.ModelID,
	})
	if err != nil {
		return err
	}

	measurement, err := w.gate.Evaluate(ctx, job.SegmentKey, payload)
	if err != nil {
		return err
	}

	storagePath := blob.SegmentPath(job.Program, job.EpisodeDate, job.SegmentKey, job.ScriptVersion, job.JobKey)
	if err := w.blobs.Upload(ctx, storagePath, payload); err != nil {
		return fmt.Errorf("upload segment audio: %w", err)
	}

	if err := w.store.Commit(ctx, job.EpisodeID, job.SegmentKey, job.JobKey, storagePath, measurement.DurationSeconds); err != nil {
		return fmt.Errorf("commit lease: %w", err)
	}
	return nil
}

// recordFailure classifies the error, applies the retry policy, and fails
// the lease so the diagnostics survive on the job row.
func (w *Worker) recordFailure(ctx context.Context, logger *slog.Logger, claim *lease.Claim, cause error) {
	class := retry.Classify(cause)
	decision := retry.Decide(claim.Attempt, class, time.Now())

	var retryAt *time.Time
	if decision.Retry {
		at := decision.RetryAt
		retryAt = &at
	}

	logger.WarnContext(ctx, "segment synthesis failed",
		logging.String(logging.FieldErrorClass, class),
		logging.Bool("will_retry", decision.Retry),
		logging.Error(cause))

	err := w.store.Fail(ctx, claim.Job.EpisodeID, claim.Job.SegmentKey, claim.Job.JobKey, class, cause.Error(), retryAt)
	if err != nil {
		logger.ErrorContext(ctx, "record job failure", logging.Error(err))
	}
}

func (w *Worker) jobLeaseTTL() time.Duration {
	return time.Duration(w.cfg.Workflow.JobLeaseTTLMinutes) * time.Minute
}
