// internal/scheduler/scheduler.go

// Package scheduler drives the retry loop for document-generation jobs:
// bounded attempts, exponential backoff between them, a per-attempt
// deadline, and a cooperative cancel check before each attempt starts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	commonerrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/models"
)

// AttemptFunc performs one generation attempt. The context carries the
// per-attempt deadline; a running attempt is never interrupted by cancel
// requests, only by its own deadline.
type AttemptFunc func(ctx context.Context, job *models.GenerationJob) (*models.GenerationResult, error)

// CancelChecker answers whether a cancel was requested for the session.
// Consulted only between attempts, never mid-attempt.
type CancelChecker interface {
	IsCancelled(ctx context.Context, sessionID string) (bool, error)
}

// Reporter receives lifecycle callbacks as the job moves through its states.
// Implementations persist status and fan out notifications.
type Reporter interface {
	OnProcessing(ctx context.Context, job *models.GenerationJob)
	OnRetryScheduled(ctx context.Context, job *models.GenerationJob, delay time.Duration, cause error)
	OnCompleted(ctx context.Context, job *models.GenerationJob, result *models.GenerationResult)
	OnFailed(ctx context.Context, job *models.GenerationJob, cause error)
	OnCancelled(ctx context.Context, job *models.GenerationJob)
}

// Config bounds the retry loop.
type Config struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	AttemptTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Minute
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 5 * time.Minute
	}
}

// Scheduler runs one job to a terminal state. Attempts execute sequentially;
// concurrency across jobs is the worker fleet's concern, not the scheduler's.
type Scheduler struct {
	cfg     Config
	cancels CancelChecker
	logger  logger.Logger

	// sleep is replaced in tests so backoff waits do not run in real time.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, cancels CancelChecker, log logger.Logger) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		cfg:     cfg,
		cancels: cancels,
		logger:  log.WithFields(map[string]interface{}{"component": "generation-scheduler"}),
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffFor returns the delay before retrying after the given number of
// completed attempts: base, base*2, base*4 for attempts 1, 2, 3. With the
// default two-minute base that is 2m, 4m, 8m.
func (s *Scheduler) backoffFor(completedAttempts int) time.Duration {
	return s.cfg.BackoffBase << (completedAttempts - 1)
}

// Run executes the job until it completes, exhausts its attempts, fails
// terminally, or is cancelled. The final status is reflected on the job and
// returned; the Reporter has already been told by then.
func (s *Scheduler) Run(ctx context.Context, job *models.GenerationJob, attempt AttemptFunc, report Reporter) (models.JobStatus, error) {
	log := s.logger.WithFields(map[string]interface{}{
		"jobId":     job.JobID,
		"sessionId": job.SessionID,
	})

	var lastErr error
	for job.Attempts < s.cfg.MaxAttempts {
		cancelled, err := s.cancels.IsCancelled(ctx, job.SessionID)
		if err != nil {
			log.Warn("cancel check failed, continuing", map[string]interface{}{"error": err})
		}
		if cancelled {
			job.Status = models.JobCancelled
			metrics.GenerationJobsCancelled.Inc()
			report.OnCancelled(ctx, job)
			log.Info("generation job cancelled", map[string]interface{}{"attempts": job.Attempts})
			return models.JobCancelled, nil
		}

		job.Attempts++
		job.Status = models.JobProcessing
		report.OnProcessing(ctx, job)

		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		result, err := attempt(attemptCtx, job)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			job.Status = models.JobCompleted
			job.Result = result.ToMap()
			metrics.GenerationAttempts.WithLabelValues("success").Inc()
			report.OnCompleted(ctx, job, result)
			return models.JobCompleted, nil
		}

		if timedOut {
			err = commonerrors.NewGenerationTimeoutError(job.SessionID)
			metrics.GenerationAttempts.WithLabelValues("timeout").Inc()
		} else {
			metrics.GenerationAttempts.WithLabelValues("failure").Inc()
		}
		lastErr = err
		job.Error = err.Error()

		if !commonerrors.IsRetryable(err) {
			job.Status = models.JobFailed
			report.OnFailed(ctx, job, err)
			log.Warn("generation failed terminally", map[string]interface{}{
				"attempts": job.Attempts,
				"error":    err,
			})
			return models.JobFailed, err
		}

		if job.Attempts >= s.cfg.MaxAttempts {
			break
		}

		delay := s.backoffFor(job.Attempts)
		job.Status = models.JobRetrying
		metrics.GenerationRetriesScheduled.Inc()
		report.OnRetryScheduled(ctx, job, delay, err)
		log.Info("generation attempt failed, retry scheduled", map[string]interface{}{
			"attempt": job.Attempts,
			"delay":   delay.String(),
			"error":   err,
		})

		if err := s.sleep(ctx, delay); err != nil {
			job.Status = models.JobFailed
			report.OnFailed(ctx, job, err)
			return models.JobFailed, fmt.Errorf("retry wait interrupted: %w", err)
		}
	}

	job.Status = models.JobFailed
	report.OnFailed(ctx, job, lastErr)
	log.Error("generation attempts exhausted", map[string]interface{}{
		"attempts": job.Attempts,
		"error":    lastErr,
	})
	return models.JobFailed, lastErr
}
