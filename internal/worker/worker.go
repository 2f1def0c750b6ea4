// Package worker runs the claim-process-complete loop that drains the
// media job queue. One Worker processes one job at a time; horizontal
// scale comes from running more processes, not more loop goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pixelharbor/mediaworker/internal/models"
	"github.com/pixelharbor/mediaworker/internal/pipeline"
	"github.com/pixelharbor/mediaworker/internal/progress"
	"github.com/pixelharbor/mediaworker/internal/repository"
)

// Config holds worker loop configuration.
type Config struct {
	// WorkerID identifies this process in logs.
	WorkerID string

	// PollInterval is the sleep between empty claims.
	// Default: 2 seconds
	PollInterval time.Duration

	// StaleAfter is how long a processing job may go untouched before the
	// sweep hands it back to the pool.
	// Default: 10 minutes
	StaleAfter time.Duration

	// JobTimeout bounds a single pipeline run.
	// Default: 1 hour
	JobTimeout time.Duration

	// TempRoot is the directory per-job work dirs are created under.
	TempRoot string

	// ProgressMinInterval is the floor between persisted progress writes.
	// Default: 500ms
	ProgressMinInterval time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		WorkerID:            fmt.Sprintf("worker-%d", time.Now().UnixNano()),
		PollInterval:        2 * time.Second,
		StaleAfter:          10 * time.Minute,
		JobTimeout:          time.Hour,
		ProgressMinInterval: progress.DefaultMinInterval,
	}
}

// Worker drains the media job queue sequentially.
type Worker struct {
	mu sync.Mutex

	jobs   repository.MediaJobRepository
	posts  repository.PostRepository
	engine pipeline.Engine
	store  pipeline.ObjectStore
	config Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a worker. Posts may be nil when no propagation target exists.
func New(jobs repository.MediaJobRepository, posts repository.PostRepository, engine pipeline.Engine, store pipeline.ObjectStore, config Config, log *slog.Logger) *Worker {
	defaults := DefaultConfig()
	if config.WorkerID == "" {
		config.WorkerID = defaults.WorkerID
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = defaults.StaleAfter
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if config.ProgressMinInterval <= 0 {
		config.ProgressMinInterval = defaults.ProgressMinInterval
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		jobs:   jobs,
		posts:  posts,
		engine: engine,
		store:  store,
		config: config,
		logger: log.With(slog.String("worker_id", config.WorkerID)),
	}
}

// Start launches the worker loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx != nil {
		return fmt.Errorf("worker already started")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.loop()

	w.logger.Info("worker started",
		slog.Duration("poll_interval", w.config.PollInterval),
		slog.Duration("stale_after", w.config.StaleAfter),
	)
	return nil
}

// Stop stops the loop and waits for an in-flight job to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.ctx = nil
	w.cancel = nil
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

var errNoJobs = errors.New("no jobs available")

// loop is the sequential claim loop: sweep, claim, process, repeat. After
// a processed job it loops immediately; only an empty queue sleeps.
func (w *Worker) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		err := w.runOnce(w.ctx)
		if err == nil {
			continue
		}
		if !errors.Is(err, errNoJobs) {
			w.logger.Error("job cycle failed", slog.Any("error", err))
		}

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(w.config.PollInterval):
		}
	}
}

// runOnce performs one sweep-claim-process cycle. Returns errNoJobs when
// the queue is empty.
func (w *Worker) runOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-w.config.StaleAfter)
	if n, err := w.jobs.ResetStale(ctx, cutoff); err != nil {
		w.logger.Warn("stale job sweep failed", slog.Any("error", err))
	} else if n > 0 {
		w.logger.Info("requeued stale jobs", slog.Int64("count", n))
	}

	job, err := w.jobs.ClaimNext(ctx)
	if err != nil {
		return fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return errNoJobs
	}

	w.process(ctx, job)
	return nil
}

// process runs one claimed job to a terminal state. Every pipeline error
// becomes a Fail write; nothing propagates out of the loop.
func (w *Worker) process(ctx context.Context, job *models.MediaJob) {
	log := w.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("media_type", string(job.MediaType)),
		slog.Int("attempt", job.AttemptCount),
	)
	log.Info("processing job")
	started := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	result, err := w.runPipeline(jobCtx, job, log)
	if err != nil {
		log.Warn("job failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(started)),
		)
		if failErr := w.jobs.Fail(ctx, job.ID, job.AttemptCount, err.Error()); failErr != nil {
			if errors.Is(failErr, models.ErrSuperseded) {
				log.Warn("failure write superseded by a newer claim")
			} else {
				log.Error("failure write failed", slog.Any("error", failErr))
			}
		}
		return
	}

	job.OutputURL = result.OutputURL
	job.ThumbnailURL = result.ThumbnailURL
	job.WaveformURL = result.WaveformURL
	job.DurationSeconds = result.DurationSeconds
	job.Width = result.Width
	job.Height = result.Height

	if err := w.jobs.Complete(ctx, job, job.AttemptCount); err != nil {
		if errors.Is(err, models.ErrSuperseded) {
			// A reclaim won the row. The artifacts this run uploaded stay
			// in storage under their own keys; the winner's terminal write
			// decides what the job points at.
			log.Warn("completion superseded by a newer claim")
		} else {
			log.Error("completion write failed", slog.Any("error", err))
		}
		return
	}

	w.propagate(ctx, job, result, log)

	log.Info("job completed",
		slog.Duration("elapsed", time.Since(started)),
		slog.String("output_url", result.OutputURL),
	)
}

// runPipeline dispatches the job to its pipeline with a per-job progress
// publisher wired into the job store.
func (w *Worker) runPipeline(ctx context.Context, job *models.MediaJob, log *slog.Logger) (*pipeline.Result, error) {
	p, err := pipeline.ForJob(job)
	if err != nil {
		return nil, err
	}

	reporter := progress.NewPublisher(func(ctx context.Context, percent int) error {
		return w.jobs.UpdateProgress(ctx, job.ID, percent)
	}, w.config.ProgressMinInterval, log)

	return p.Run(ctx, &pipeline.Context{
		Job:      job,
		TempRoot: w.config.TempRoot,
		Engine:   w.engine,
		Store:    w.store,
		Reporter: reporter,
		Logger:   log,
	})
}

// propagate copies the completed job's media fields onto its post, when it
// has one. Fire and forget: the job row is already terminal, and a missing
// or deleted post must not fail the job.
func (w *Worker) propagate(ctx context.Context, job *models.MediaJob, result *pipeline.Result, log *slog.Logger) {
	if job.PostID == nil || w.posts == nil {
		return
	}
	err := w.posts.UpdateMediaFields(ctx, *job.PostID, models.PostMediaFields{
		MediaURL:             result.OutputURL,
		MediaThumbnailURL:    result.ThumbnailURL,
		MediaDurationSeconds: result.DurationSeconds,
		MediaWidth:           result.Width,
		MediaHeight:          result.Height,
	})
	if err != nil {
		log.Warn("post propagation failed",
			slog.String("post_id", job.PostID.String()),
			slog.Any("error", err),
		)
	}
}
