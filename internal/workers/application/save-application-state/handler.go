// internal/workers/application/save-application-state/handler.go
package saveapplicationstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/common/validation"
	"lending-workers/internal/models"
	"lending-workers/internal/store"
)

const (
	TaskType = "save-application-state"
)

// Store is the persistence surface the handler needs.
type Store interface {
	GetBySession(ctx context.Context, sessionID string) (*models.Application, error)
	SaveState(ctx context.Context, app *models.Application) error
	AppendTransition(ctx context.Context, t *models.Transition) error
}

// Enqueuer publishes the generation-requested message once an application
// reaches its generation-ready step. Publication happens strictly after the
// state write; a lost message is recoverable, a phantom one is not.
type Enqueuer interface {
	PublishMessage(ctx context.Context, name, correlationKey string, variables map[string]interface{}) error
}

type Handler struct {
	config   *Config
	store    Store
	enqueuer Enqueuer
	logger   logger.Logger
}

func NewHandler(config *Config, st Store, enqueuer Enqueuer, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		store:    st,
		enqueuer: enqueuer,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
	validation.SanitizeMap(input.FormData)
	validation.SanitizeMap(input.Metadata)

	if verrs := h.validate(input); len(verrs) > 0 {
		if verrs[0].Code == "UNKNOWN_STEP" {
			return nil, commonerrors.NewStepInvalidError(input.Step)
		}
		return nil, commonerrors.NewValidationFailedError(verrs[0].Error())
	}

	channel := models.Channel(input.Channel)
	step := models.Step(input.Step)

	existing, err := h.store.GetBySession(ctx, input.SessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, commonerrors.NewDatabaseError(err)
	}
	if existing != nil && existing.IsExpired() {
		// A lapsed session must not leak stale form data into a new one.
		existing = nil
	}

	app := &models.Application{
		SessionID:   input.SessionID,
		UserID:      input.UserID,
		Channel:     channel,
		CurrentStep: step,
		FormData:    input.FormData,
		Metadata:    input.Metadata,
	}

	var fromStep models.Step
	if existing != nil {
		fromStep = existing.CurrentStep
		app.FormData = mergeFormData(existing.FormData, input.FormData)
		if app.UserID == "" {
			app.UserID = existing.UserID
		}
	}
	if h.config.SessionTTL > 0 {
		expires := time.Now().Add(h.config.SessionTTL)
		app.ExpiresAt = &expires
	}

	if err := h.store.SaveState(ctx, app); err != nil {
		return nil, commonerrors.NewDatabaseError(err)
	}

	// One transition record per accepted step change. Saves that only touch
	// form data leave the audit trail alone.
	if fromStep != step {
		transition := &models.Transition{
			SessionID: input.SessionID,
			FromStep:  fromStep,
			ToStep:    step,
			Channel:   channel,
			Payload:   input.Metadata,
		}
		if err := h.store.AppendTransition(ctx, transition); err != nil {
			return nil, commonerrors.NewDatabaseError(err)
		}
	}

	priority := models.PriorityForStep(step)

	if step.IsGenerationReady() && h.config.PublishOnReady && h.enqueuer != nil {
		variables := map[string]interface{}{
			"sessionId": input.SessionID,
			"priority":  priority,
		}
		if err := h.enqueuer.PublishMessage(ctx, h.config.GenerationMsg, input.SessionID, variables); err != nil {
			// The state is committed; the message can be replayed.
			h.logger.Error("failed to publish generation message", map[string]interface{}{
				"sessionId": input.SessionID,
				"error":     err.Error(),
			})
		}
	}

	return &Output{
		Saved:       true,
		SessionID:   input.SessionID,
		CurrentStep: input.Step,
		Priority:    priority,
	}, nil
}

// validate runs the structural checks. A single failure rejects the whole
// save; no partial writes.
func (h *Handler) validate(input *Input) []validation.ValidationError {
	var verrs []validation.ValidationError

	input.SessionID = validation.Sanitize(input.SessionID)
	if input.SessionID == "" || !validation.IsSessionID(input.SessionID) {
		verrs = append(verrs, validation.ValidationError{
			Field: "sessionId", Code: "INVALID_FORMAT", Message: "session id is missing or malformed",
		})
	}
	if !models.Channel(input.Channel).IsValid() {
		verrs = append(verrs, validation.ValidationError{
			Field: "channel", Code: "UNKNOWN_CHANNEL", Message: fmt.Sprintf("unknown channel: %s", input.Channel),
		})
	}
	if !models.Step(input.Step).IsValid() {
		verrs = append(verrs, validation.ValidationError{
			Field: "step", Code: "UNKNOWN_STEP", Message: fmt.Sprintf("unknown step: %s", input.Step),
		})
	}
	verrs = append(verrs, validateFormFields(input.FormData)...)
	return verrs
}

// validateFormFields applies format rules to the recognized form-data keys.
// Only fields actually present in the request are checked; a channel that
// submits one field at a time is never penalized for the fields it has not
// collected yet.
func validateFormFields(formData map[string]interface{}) []validation.ValidationError {
	if len(formData) == 0 {
		return nil
	}
	var verrs []validation.ValidationError

	if raw, ok := formData["amount"]; ok {
		amount, err := validation.ParseAmount(raw)
		if err != nil {
			verrs = append(verrs, validation.ValidationError{
				Field: "amount", Code: "INVALID_FORMAT", Message: "amount is not a number",
			})
		} else if !validation.IsAmountInRange(amount) {
			verrs = append(verrs, validation.ValidationError{
				Field: "amount", Code: "OUT_OF_RANGE",
				Message: fmt.Sprintf("amount must be between 0 and %d", validation.MaxMonetaryAmount),
			})
		}
	}

	responses, _ := formData["formResponses"].(map[string]interface{})
	for _, field := range []string{"firstName", "lastName"} {
		if v, ok := responses[field].(string); ok && v != "" && !validation.IsName(v) {
			verrs = append(verrs, validation.ValidationError{
				Field: field, Code: "INVALID_FORMAT", Message: field + " contains invalid characters",
			})
		}
	}
	if v, ok := responses["emailAddress"].(string); ok && v != "" && !validation.IsEmail(v) {
		verrs = append(verrs, validation.ValidationError{
			Field: "emailAddress", Code: "INVALID_FORMAT", Message: "emailAddress is not a valid email address",
		})
	}
	if v, ok := responses["mobile"].(string); ok && v != "" && !validation.IsMobile(v) {
		verrs = append(verrs, validation.ValidationError{
			Field: "mobile", Code: "INVALID_FORMAT", Message: "mobile is not a valid mobile number",
		})
	}
	if v, ok := responses["nationalIdNumber"].(string); ok && v != "" && !validation.IsNationalID(v) {
		verrs = append(verrs, validation.ValidationError{
			Field: "nationalIdNumber", Code: "INVALID_FORMAT", Message: "nationalIdNumber is not a valid national identifier",
		})
	}
	return verrs
}

// mergeFormData overlays incoming keys onto the stored form data. Concurrent
// writers are last-write-wins at the key level.
func mergeFormData(existing, incoming map[string]interface{}) map[string]interface{} {
	if len(existing) == 0 {
		return incoming
	}
	merged := make(map[string]interface{}, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		if inner, ok := v.(map[string]interface{}); ok {
			if existingInner, ok := merged[k].(map[string]interface{}); ok {
				combined := make(map[string]interface{}, len(existingInner)+len(inner))
				for ik, iv := range existingInner {
					combined[ik] = iv
				}
				for ik, iv := range inner {
					combined[ik] = iv
				}
				merged[k] = combined
				continue
			}
		}
		merged[k] = v
	}
	return merged
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
