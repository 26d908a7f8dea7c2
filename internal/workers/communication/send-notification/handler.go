// internal/workers/communication/send-notification/handler.go
package sendnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/models"
)

const (
	TaskType = "send-notification"
)

type Handler struct {
	config    *Config
	notifiers map[models.NotificationChannel]Notifier
	logger    logger.Logger
}

func NewHandler(config *Config, notifiers map[models.NotificationChannel]Notifier, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		notifiers: notifiers,
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
		h.failJob(client, job, commonerrors.ToBPMN(err, commonerrors.ErrCodeNotificationFailed))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	channel := models.NotificationChannel(input.Channel)
	if !channel.IsValid() {
		return nil, commonerrors.NewValidationFailedError(
			fmt.Sprintf("unknown notification channel: %s", input.Channel))
	}
	if input.Message == "" {
		return nil, commonerrors.NewValidationFailedError("message is required")
	}

	notifier, ok := h.notifiers[channel]
	if !ok {
		metrics.NotificationsSent.WithLabelValues(string(channel), "unconfigured").Inc()
		return nil, commonerrors.NewNotificationSendFailedError(string(channel),
			fmt.Errorf("channel is not configured"))
	}

	messageID, err := notifier.Send(ctx, input)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues(string(channel), "error").Inc()
		return nil, commonerrors.NewNotificationSendFailedError(string(channel), err)
	}

	metrics.NotificationsSent.WithLabelValues(string(channel), "sent").Inc()
	h.logger.Info("notification sent", map[string]interface{}{
		"sessionId": input.SessionID,
		"channel":   string(channel),
		"messageId": messageID,
	})

	return &Output{
		Success:   true,
		Channel:   string(channel),
		MessageID: messageID,
		SentAt:    time.Now().UTC(),
	}, nil
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
