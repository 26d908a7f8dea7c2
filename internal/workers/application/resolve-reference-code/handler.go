// internal/workers/application/resolve-reference-code/handler.go
package resolvereferencecode

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
	"lending-workers/internal/common/validation"
	"lending-workers/internal/models"
	"lending-workers/internal/refcode"
	"lending-workers/internal/store"
)

const (
	TaskType = "resolve-reference-code"
)

type Store interface {
	GetByReferenceCode(ctx context.Context, code string) (*models.Application, error)
	GetByNationalID(ctx context.Context, nationalID string) (*models.Application, error)
}

type Handler struct {
	config *Config
	store  Store
	logger logger.Logger
}

func NewHandler(config *Config, st Store, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  st,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

// execute resolves a lookup key to an application. Exact reference codes win;
// anything else falls through to the national-id lookup.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	normalized := refcode.Normalize(input.Code)
	if normalized == "" {
		return nil, commonerrors.NewValidationFailedError("lookup code is required")
	}
	if !refcode.IsValid(normalized) {
		return nil, commonerrors.NewReferenceCodeInvalidError(input.Code)
	}

	if refcode.IsReferenceCode(normalized) {
		app, err := h.store.GetByReferenceCode(ctx, normalized)
		if err == nil {
			return found(app, "reference_code"), nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, commonerrors.NewDatabaseError(err)
		}
		// An exact six-character code that matches nothing still falls
		// through: it may be a short national identifier.
	}

	if validation.IsNationalID(normalized) {
		app, err := h.store.GetByNationalID(ctx, normalized)
		if err == nil {
			return found(app, "national_id"), nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, commonerrors.NewDatabaseError(err)
		}
	}

	h.logger.Info("lookup code matched nothing", map[string]interface{}{
		"code": normalized,
	})
	return &Output{Found: false}, nil
}

func found(app *models.Application, matchedBy string) *Output {
	return &Output{
		Found:         true,
		SessionID:     app.SessionID,
		ReferenceCode: app.ReferenceCode,
		CurrentStep:   string(app.CurrentStep),
		Channel:       string(app.Channel),
		MatchedBy:     matchedBy,
	}
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
