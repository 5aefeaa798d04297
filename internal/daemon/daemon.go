// Package daemon coordinates the background services and enforces
// single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"loom/internal/blob"
	"loom/internal/config"
	"loom/internal/lease"
	"loom/internal/logging"
	"loom/internal/stitch"
	"loom/internal/tts"
	"loom/internal/worker"
)

// Daemon owns the worker poll loop and the stitch scanner ticker.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *lease.Store
	worker  *worker.Worker
	scanner *stitch.Scanner

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LeaseDBPath  string
	LockFilePath string
	Jobs         lease.Stats
}

// New constructs a daemon and its service graph from the config.
func New(cfg *config.Config, store *lease.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	blobs, err := blob.NewFSStoreFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	synth := tts.NewFromConfig(cfg)
	w := worker.New(cfg, store, synth, blobs, logger)
	stitcher := stitch.New(cfg, store, blobs, logger)
	scanner := stitch.NewScanner(cfg, store, blobs, stitcher, logger)

	lockPath := filepath.Join(cfg.Paths.DataDir, "loomd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		worker:   w,
		scanner:  scanner,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another loom daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.worker.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start worker: %w", err)
	}

	d.wg.Add(1)
	go d.runStitchLoop(runCtx)

	d.running.Store(true)
	d.logger.InfoContext(ctx, "loom daemon started",
		logging.String("lock", d.lockPath),
		logging.String("lease_db", d.store.Path()))
	return nil
}

// runStitchLoop triggers the stitch scanner on its configured interval.
func (d *Daemon) runStitchLoop(ctx context.Context) {
	defer d.wg.Done()

	interval := time.Duration(d.cfg.Workflow.StitchInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		stitched, err := d.scanner.RunOnce(ctx, "daemon")
		if err != nil && ctx.Err() == nil {
			d.logger.ErrorContext(ctx, "stitch scan failed", logging.Error(err))
			continue
		}
		if stitched > 0 {
			d.logger.InfoContext(ctx, "stitch scan complete", logging.Int("stitched", stitched))
		}
	}
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.worker.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("loom daemon stopped")
}

// Close stops the daemon and releases its resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports runtime information for the CLI.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:      d.running.Load(),
		LeaseDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Jobs:         stats,
	}, nil
}
