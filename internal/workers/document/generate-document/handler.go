// internal/workers/document/generate-document/handler.go

// Package generatedocument drives the asynchronous document pipeline: each
// job runs validation, template selection, data preparation and rendering
// under the retry scheduler, reporting status through the shared cache.
package generatedocument

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	commonerrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/models"
	"lending-workers/internal/scheduler"
)

const (
	TaskType = "generate-document"
)

type Handler struct {
	config    *Config
	service   *Service
	scheduler *scheduler.Scheduler
	logger    logger.Logger
}

func NewHandler(config *Config, service *Service, log logger.Logger) *Handler {
	sched := scheduler.New(scheduler.Config{
		MaxAttempts:    config.MaxAttempts,
		BackoffBase:    config.BackoffBase,
		AttemptTimeout: config.AttemptTimeout,
	}, service, log)

	return &Handler{
		config:    config,
		service:   service,
		scheduler: sched,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, &commonerrors.BPMNError{
			Code:    "PARSE_ERROR",
			Message: fmt.Sprintf("parse input: %v", err),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, commonerrors.ToBPMN(err, commonerrors.ErrCodeGenerationFailed))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.SessionID == "" {
		return nil, commonerrors.NewValidationFailedError("session id is required")
	}
	if input.NotifyChannel != "" && !models.NotificationChannel(input.NotifyChannel).IsValid() {
		return nil, commonerrors.NewValidationFailedError(
			fmt.Sprintf("unknown notification channel: %s", input.NotifyChannel))
	}

	job := &models.GenerationJob{
		JobID:         input.JobID,
		SessionID:     input.SessionID,
		Options:       input.Options,
		NotifyChannel: models.NotificationChannel(input.NotifyChannel),
		CallbackURL:   input.CallbackURL,
		Priority:      input.Priority,
		Status:        models.JobQueued,
	}
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.NotifyChannel == "" {
		job.NotifyChannel = models.NotifyLog
	}

	// Visible as queued before the first attempt so a cancel request has
	// something to land on.
	h.service.record(ctx, job, nil)

	status, runErr := h.scheduler.Run(ctx, job, h.service.Attempt, h.service)

	output := &Output{
		JobID:     job.JobID,
		SessionID: job.SessionID,
		Status:    string(status),
		Attempts:  job.Attempts,
		Error:     job.Error,
	}
	if status == models.JobCompleted {
		output.DocumentID, _ = job.Result["documentId"].(string)
		output.TemplateID, _ = job.Result["templateId"].(string)
		output.Location, _ = job.Result["location"].(string)
		return output, nil
	}
	if status == models.JobCancelled {
		// A cancelled job is a normal workflow outcome, not a failure.
		return output, nil
	}
	return nil, runErr
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// failJob reports the failure to the engine. Retryable errors hand the job
// back with its remaining retries so the engine redelivers; terminal ones
// raise a BPMN error the workflow can route on.
func (h *Handler) failJob(client worker.JobClient, job entities.Job, bpmnErr *commonerrors.BPMNError) {
	fields := bpmnErr.ToErrorVariables()
	fields["jobKey"] = job.Key
	fields["category"] = commonerrors.GetErrorCategory(commonerrors.ErrorCode(bpmnErr.Code))
	h.logger.Error("job failed", fields)

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()

	if bpmnErr.Retryable {
		retries := job.Retries - 1
		if retries < 0 {
			retries = 0
		}
		_, err := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(retries).
			ErrorMessage(bpmnErr.Message).
			Send(context.Background())
		if err != nil {
			h.logger.Error("failed to fail job", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return
	}

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
