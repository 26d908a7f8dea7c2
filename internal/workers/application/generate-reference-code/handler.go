// internal/workers/application/generate-reference-code/handler.go
package generatereferencecode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/models"
	"lending-workers/internal/refcode"
	"lending-workers/internal/store"
)

const (
	TaskType = "generate-reference-code"
)

type Store interface {
	GetBySession(ctx context.Context, sessionID string) (*models.Application, error)
	AssignReferenceCode(ctx context.Context, sessionID, code string) error
}

type Handler struct {
	config *Config
	store  Store
	logger logger.Logger

	// generate is replaced in tests to force collisions.
	generate func() (string, error)
}

func NewHandler(config *Config, st Store, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		store:    st,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
		generate: refcode.Generate,
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
		h.failJob(client, job, commonerrors.ToBPMN(err, commonerrors.ErrCodeDatabaseFailed))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.SessionID == "" {
		return nil, commonerrors.NewValidationFailedError("session id is required")
	}

	for attempt := 1; attempt <= h.config.MaxAttempts; attempt++ {
		code, err := h.generate()
		if err != nil {
			return nil, commonerrors.NewUnexpectedError(err, map[string]interface{}{
				"sessionId": input.SessionID,
			})
		}

		err = h.store.AssignReferenceCode(ctx, input.SessionID, code)
		switch {
		case err == nil:
			h.logger.Info("reference code assigned", map[string]interface{}{
				"sessionId": input.SessionID,
				"attempt":   attempt,
			})
			return &Output{SessionID: input.SessionID, ReferenceCode: code}, nil

		case errors.Is(err, store.ErrCodeCollision):
			h.logger.Debug("reference code collision, retrying", map[string]interface{}{
				"sessionId": input.SessionID,
				"attempt":   attempt,
			})
			continue

		case errors.Is(err, store.ErrCodeAlreadySet):
			app, lookupErr := h.store.GetBySession(ctx, input.SessionID)
			if lookupErr != nil {
				return nil, commonerrors.NewDatabaseError(lookupErr)
			}
			return &Output{
				SessionID:       input.SessionID,
				ReferenceCode:   app.ReferenceCode,
				AlreadyAssigned: true,
			}, nil

		case errors.Is(err, store.ErrNotFound):
			return nil, commonerrors.NewApplicationNotFoundError(input.SessionID)

		default:
			return nil, commonerrors.NewDatabaseError(err)
		}
	}

	return nil, commonerrors.NewReferenceExhaustedError(h.config.MaxAttempts)
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
