// internal/workers/communication/call-webhook/handler.go
package callwebhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "lending-workers/internal/common/errors"
	commonhttp "lending-workers/internal/common/http"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
)

const (
	TaskType = "call-webhook"
)

type Handler struct {
	config *Config
	client *commonhttp.Client
	logger logger.Logger
}

func NewHandler(config *Config, client *commonhttp.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: client,
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
		h.failJob(client, job, commonerrors.ToBPMN(err, commonerrors.ErrCodeValidationFailed))
		return
	}

	h.completeJob(client, job, output)
}

// execute posts the outcome payload. Delivery problems are recorded in the
// output and logged; only a malformed request is an error.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.SessionID == "" {
		return nil, commonerrors.NewValidationFailedError("session id is required")
	}
	parsed, err := url.Parse(input.URL)
	if err != nil || parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, commonerrors.NewValidationFailedError(
			fmt.Sprintf("callback url is not valid: %s", input.URL))
	}

	payload, err := json.Marshal(map[string]interface{}{
		"sessionId": input.SessionID,
		"status":    input.Status,
		"data":      input.Data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, commonerrors.NewValidationFailedError(fmt.Sprintf("marshal payload: %v", err))
	}

	req, err := http.NewRequest(http.MethodPost, input.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, commonerrors.NewValidationFailedError(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.DoWithContext(ctx, req)
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		werr := commonerrors.NewWebhookDeliveryFailedError(input.URL, err)
		h.logger.Warn("webhook delivery failed", map[string]interface{}{
			"sessionId": input.SessionID,
			"code":      string(werr.Code),
			"error":     werr.Details,
		})
		return &Output{Delivered: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.WebhookDeliveries.WithLabelValues("rejected").Inc()
		h.logger.Warn("webhook endpoint rejected delivery", map[string]interface{}{
			"sessionId":  input.SessionID,
			"url":        input.URL,
			"statusCode": resp.StatusCode,
		})
		return &Output{
			Delivered:  false,
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("endpoint returned %d", resp.StatusCode),
		}, nil
	}

	metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
	return &Output{Delivered: true, StatusCode: resp.StatusCode}, nil
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
