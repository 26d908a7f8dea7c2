// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/models"
)

type stubCancels struct {
	// cancelledAfter marks the job cancelled once this many cancel checks
	// have happened. -1 means never.
	cancelledAfter int
	checks         int
}

func (s *stubCancels) IsCancelled(ctx context.Context, sessionID string) (bool, error) {
	s.checks++
	return s.cancelledAfter >= 0 && s.checks > s.cancelledAfter, nil
}

type recordingReporter struct {
	processing int
	retries    []time.Duration
	completed  bool
	failed     bool
	cancelled  bool
	failure    error
}

func (r *recordingReporter) OnProcessing(ctx context.Context, job *models.GenerationJob) {
	r.processing++
}

func (r *recordingReporter) OnRetryScheduled(ctx context.Context, job *models.GenerationJob, delay time.Duration, cause error) {
	r.retries = append(r.retries, delay)
}

func (r *recordingReporter) OnCompleted(ctx context.Context, job *models.GenerationJob, result *models.GenerationResult) {
	r.completed = true
}

func (r *recordingReporter) OnFailed(ctx context.Context, job *models.GenerationJob, cause error) {
	r.failed = true
	r.failure = cause
}

func (r *recordingReporter) OnCancelled(ctx context.Context, job *models.GenerationJob) {
	r.cancelled = true
}

func newTestScheduler(t *testing.T, cancels CancelChecker) (*Scheduler, *[]time.Duration) {
	s := New(Config{MaxAttempts: 3, BackoffBase: 2 * time.Minute, AttemptTimeout: 5 * time.Minute},
		cancels, logger.NewTestLogger(t))
	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func newJob() *models.GenerationJob {
	return &models.GenerationJob{
		JobID:     "job-1",
		SessionID: "session-abc",
		Status:    models.JobQueued,
	}
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	s, slept := newTestScheduler(t, &stubCancels{cancelledAfter: -1})
	reporter := &recordingReporter{}
	job := newJob()

	status, err := s.Run(context.Background(), job, func(ctx context.Context, j *models.GenerationJob) (*models.GenerationResult, error) {
		return &models.GenerationResult{DocumentID: "doc-1", TemplateID: "ssb_loan_form"}, nil
	}, reporter)

	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, status)
	assert.Equal(t, 1, job.Attempts)
	assert.True(t, reporter.completed)
	assert.Empty(t, *slept)
	assert.Equal(t, "doc-1", job.Result["documentId"])
}

func TestRun_RetriesWithExponentialBackoff(t *testing.T) {
	s, slept := newTestScheduler(t, &stubCancels{cancelledAfter: -1})
	reporter := &recordingReporter{}
	job := newJob()

	attempts := 0
	status, err := s.Run(context.Background(), job, func(ctx context.Context, j *models.GenerationJob) (*models.GenerationResult, error) {
		attempts++
		if attempts < 3 {
			return nil, commonerrors.NewGenerationFailedError(assert.AnError)
		}
		return &models.GenerationResult{DocumentID: "doc-1"}, nil
	}, reporter)

	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, status)
	assert.Equal(t, 3, job.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Minute, 4 * time.Minute}, *slept)
	assert.Equal(t, []time.Duration{2 * time.Minute, 4 * time.Minute}, reporter.retries)
}

func TestRun_ExhaustsAttempts(t *testing.T) {
	s, slept := newTestScheduler(t, &stubCancels{cancelledAfter: -1})
	reporter := &recordingReporter{}
	job := newJob()

	status, err := s.Run(context.Background(), job, func(ctx context.Context, j *models.GenerationJob) (*models.GenerationResult, error) {
		return nil, commonerrors.NewGenerationFailedError(assert.AnError)
	}, reporter)

	require.Error(t, err)
	assert.Equal(t, models.JobFailed, status)
	assert.Equal(t, 3, job.Attempts)
	assert.True(t, reporter.failed)
	assert.True(t, commonerrors.IsCode(reporter.failure, commonerrors.ErrCodeGenerationFailed))
	// Two waits between three attempts, none after the last.
	assert.Equal(t, []time.Duration{2 * time.Minute, 4 * time.Minute}, *slept)
}

func TestRun_ValidationFailureNeverRetries(t *testing.T) {
	s, slept := newTestScheduler(t, &stubCancels{cancelledAfter: -1})
	reporter := &recordingReporter{}
	job := newJob()

	status, err := s.Run(context.Background(), job, func(ctx context.Context, j *models.GenerationJob) (*models.GenerationResult, error) {
		return nil, commonerrors.NewValidationFailedError("first name is required")
	}, reporter)

	require.Error(t, err)
	assert.Equal(t, models.JobFailed, status)
	assert.Equal(t, 1, job.Attempts)
	assert.True(t, reporter.failed)
	assert.Empty(t, *slept)
	assert.Empty(t, reporter.retries)
}

func TestRun_CancelledBeforeFirstAttempt(t *testing.T) {
	s, _ := newTestScheduler(t, &stubCancels{cancelledAfter: 0})
	reporter := &recordingReporter{}
	job := newJob()

	attempted := false
	status, err := s.Run(context.Background(), job, func(ctx context.Context, j *models.GenerationJob) (*models.GenerationResult, error) {
		attempted = true
		return nil, nil
	}, reporter)

	require.NoError(t, err)
	assert.Equal(t, models.JobCancelled, status)
	assert.False(t, attempted, "no attempt should run after a cancel")
	assert.Zero(t, job.Attempts)
	assert.True(t, reporter.cancelled)
	assert.Zero(t, reporter.processing)
}

func TestRun_CancelTakesEffectAtNextAttemptBoundary(t *testing.T) {
	// Cancel lands during the first attempt. The attempt runs to its failure,
	// a retry is scheduled, and the cancel is honored at the next boundary.
	s, slept := newTestScheduler(t, &stubCancels{cancelledAfter: 1})
	reporter := &recordingReporter{}
	job := newJob()

	attempts := 0
	status, err := s.Run(context.Background(), job, func(ctx context.Context, j *models.GenerationJob) (*models.GenerationResult, error) {
		attempts++
		return nil, commonerrors.NewGenerationFailedError(assert.AnError)
	}, reporter)

	require.NoError(t, err)
	assert.Equal(t, models.JobCancelled, status)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, []time.Duration{2 * time.Minute}, *slept)
	assert.True(t, reporter.cancelled)
	assert.False(t, reporter.failed)
}

func TestRun_AttemptTimeoutIsRetryable(t *testing.T) {
	cancels := &stubCancels{cancelledAfter: -1}
	s := New(Config{MaxAttempts: 2, BackoffBase: 2 * time.Minute, AttemptTimeout: 10 * time.Millisecond},
		cancels, logger.NewTestLogger(t))
	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	reporter := &recordingReporter{}
	job := newJob()

	status, err := s.Run(context.Background(), job, func(ctx context.Context, j *models.GenerationJob) (*models.GenerationResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, reporter)

	require.Error(t, err)
	assert.Equal(t, models.JobFailed, status)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeGenerationTimeout))
	// The timeout was retried once before attempts ran out.
	assert.Equal(t, []time.Duration{2 * time.Minute}, slept)
	assert.Equal(t, 2, job.Attempts)
}

func TestBackoffProgression(t *testing.T) {
	s := New(Config{BackoffBase: 2 * time.Minute}, &stubCancels{cancelledAfter: -1}, logger.NewTestLogger(t))

	assert.Equal(t, 2*time.Minute, s.backoffFor(1))
	assert.Equal(t, 4*time.Minute, s.backoffFor(2))
	assert.Equal(t, 8*time.Minute, s.backoffFor(3))
}
