// Package scheduler drives grading: it polls the monitor directory for
// job descriptors and processes them strictly one at a time.
package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"autojudge/internal/judge/descriptor"
	"autojudge/pkg/errors"
	"autojudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// DefaultRefillThreshold mirrors the queue refill trigger of the
// original polling loop.
const DefaultRefillThreshold = 10

// failedSubdir collects job files whose processing failed, for operator
// inspection; nothing retries them automatically.
const failedSubdir = "failed"

// JobStore lists pending grading jobs from durable storage.
type JobStore interface {
	// ListPending returns job file paths, oldest first.
	ListPending(ctx context.Context) ([]string, error)
}

// FileJobStore lists job descriptors from the monitor directory.
type FileJobStore struct {
	dir string
}

// NewFileJobStore creates a job store over the monitor directory.
func NewFileJobStore(dir string) *FileJobStore {
	return &FileJobStore{dir: dir}
}

// ListPending returns the descriptor paths in the monitor directory,
// oldest modification first. Files outside the naming scheme (temp
// files mid-rename, the failed subdirectory) are skipped.
func (s *FileJobStore) ListPending(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.InternalError, "list monitor dir failed")
	}

	type pending struct {
		path    string
		modTime time.Time
	}
	var jobs []pending
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := descriptor.SubmissionIDFromFileName(entry.Name()); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		jobs = append(jobs, pending{
			path:    filepath.Join(s.dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].modTime.Before(jobs[j].modTime) })

	paths := make([]string, 0, len(jobs))
	for _, job := range jobs {
		paths = append(paths, job.path)
	}
	return paths, nil
}

// Ingestor consumes a result file after the sandbox has run.
type Ingestor interface {
	IngestFile(ctx context.Context, path string) error
}

// Scorer recomputes a submission's scores after ingestion.
type Scorer interface {
	ScoreSubmission(ctx context.Context, submissionID int64) error
}

// Scheduler owns the grading loop: a small in-memory queue refilled from
// the job store, processed strictly sequentially. One sandbox execution
// at a time keeps the host's resource budget predictable, and the
// single-threaded loop is what makes the leaderboard's single-writer
// assumption hold.
type Scheduler struct {
	store    JobStore
	runner   Runner
	ingestor Ingestor
	scorer   Scorer

	queue           []string
	refillThreshold int
	pollInterval    time.Duration
	failedDir       string
}

// Config holds the scheduler knobs.
type Config struct {
	// MonitorDir is where failed jobs are quarantined.
	MonitorDir string
	// RefillThreshold refills the queue when it shrinks below this.
	RefillThreshold int
	// PollInterval is the sleep between polls of an empty store.
	PollInterval time.Duration
}

// New creates a scheduler.
func New(cfg Config, store JobStore, runner Runner, ingestor Ingestor, scorer Scorer) *Scheduler {
	if cfg.RefillThreshold <= 0 {
		cfg.RefillThreshold = DefaultRefillThreshold
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Scheduler{
		store:           store,
		runner:          runner,
		ingestor:        ingestor,
		scorer:          scorer,
		refillThreshold: cfg.RefillThreshold,
		pollInterval:    cfg.PollInterval,
		failedDir:       filepath.Join(cfg.MonitorDir, failedSubdir),
	}
}

// Run processes jobs until ctx is cancelled. Cancellation is honored
// between jobs, never mid-job.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info(ctx, "scheduler started",
		zap.Int("refill_threshold", s.refillThreshold),
		zap.Duration("poll_interval", s.pollInterval))

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "scheduler stopped")
			return ctx.Err()
		default:
		}

		if len(s.queue) < s.refillThreshold {
			pending, err := s.store.ListPending(ctx)
			if err != nil {
				logger.Error(ctx, "listing pending jobs failed", zap.Error(err))
			} else {
				s.queue = pending
			}
		}

		if len(s.queue) == 0 {
			select {
			case <-ctx.Done():
				logger.Info(ctx, "scheduler stopped")
				return ctx.Err()
			case <-time.After(s.pollInterval):
			}
			continue
		}

		jobPath := s.queue[0]
		s.queue = s.queue[1:]
		s.process(ctx, jobPath)
	}
}

// process grades one job. Failures are logged and the job file is moved
// aside; there is no retry.
func (s *Scheduler) process(ctx context.Context, jobPath string) {
	ctx = logger.WithJobFile(ctx, jobPath)

	submissionID, ok := descriptor.SubmissionIDFromFileName(jobPath)
	if !ok {
		logger.Error(ctx, "job file name outside naming scheme")
		s.quarantine(ctx, jobPath)
		return
	}
	ctx = logger.WithSubmission(ctx, submissionID)

	if _, err := os.Stat(jobPath); os.IsNotExist(err) {
		// Stale queue entry; the job was already handled.
		return
	}

	if err := s.runner.Run(ctx, submissionID); err != nil {
		logger.Error(ctx, "sandbox invocation failed",
			zap.Int64("code", int64(errors.GetCode(err))),
			zap.Error(err))
		s.quarantine(ctx, jobPath)
		return
	}

	// The sandbox rewrites the job file in place as the result file.
	if err := s.ingestor.IngestFile(ctx, jobPath); err != nil {
		logger.Error(ctx, "result ingestion failed",
			zap.Int64("code", int64(errors.GetCode(err))),
			zap.Error(err))
		s.quarantine(ctx, jobPath)
		return
	}

	if err := s.scorer.ScoreSubmission(ctx, submissionID); err != nil {
		logger.Error(ctx, "scoring failed",
			zap.Int64("code", int64(errors.GetCode(err))),
			zap.Error(err))
	}
}

// quarantine moves a failed job file out of the monitor directory so
// the loop stops picking it up, preserving it for inspection.
func (s *Scheduler) quarantine(ctx context.Context, jobPath string) {
	if _, err := os.Stat(jobPath); os.IsNotExist(err) {
		return
	}
	if err := os.MkdirAll(s.failedDir, 0755); err != nil {
		logger.Error(ctx, "cannot create quarantine dir", zap.Error(err))
		return
	}
	target := filepath.Join(s.failedDir, filepath.Base(jobPath))
	if err := os.Rename(jobPath, target); err != nil {
		logger.Error(ctx, "cannot quarantine job file", zap.Error(err))
		return
	}
	logger.Warn(ctx, "job quarantined", zap.String("target", target))
}
