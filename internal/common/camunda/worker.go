// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lending-workers/internal/common/config"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/common/observability"
)

// JobHandler is the signature every worker package's Handler implements.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// CamundaWorker owns one open job subscription so shutdown can close it
// before the gRPC connection goes away.
type CamundaWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

func NewWorker(
	client zbc.Client,
	taskType string,
	wcfg config.WorkerConfig,
	handler JobHandler,
	obs *observability.Observability,
	logger *zap.Logger,
) *CamundaWorker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handler, obs)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)

	return &CamundaWorker{
		worker:   jobWorker,
		logger:   logger,
		taskType: taskType,
	}
}

// instrument wraps a handler so every polled job is traced and timed,
// whatever its outcome. Completed/failed counts are recorded where the
// outcome is decided, in the handler's complete and fail paths.
func instrument(taskType string, handler JobHandler, obs *observability.Observability) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		ctx := context.Background()
		var span oteltrace.Span
		if obs != nil {
			ctx, span = obs.StartSpan(ctx, taskType)
		}
		start := time.Now()
		handler.Handle(client, job)
		elapsed := time.Since(start)

		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		if obs != nil {
			obs.RecordJobProcessed(ctx, taskType)
			obs.RecordJobDuration(ctx, elapsed, taskType)
			span.End()
		}
	}
}

func (w *CamundaWorker) TaskType() string {
	return w.taskType
}

// Stop drains the subscription. Close blocks until in-flight handler
// invocations return, so the passed context only bounds logging.
func (w *CamundaWorker) Stop(ctx context.Context) {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
}
