// internal/workers/document/validate-upload/handler.go
package validateupload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/common/validation"
	"lending-workers/internal/models"
)

const (
	TaskType = "validate-upload"

	// signatureWindow is how many leading bytes are inspected.
	signatureWindow = 1024
)

// Magic numbers for the allowed file formats.
var fileSignatures = map[string][][]byte{
	"application/pdf": {[]byte("%PDF-")},
	"image/jpg":       {{0xFF, 0xD8, 0xFF}},
	"image/jpeg":      {{0xFF, 0xD8, 0xFF}},
	"image/png":       {{0x89, 'P', 'N', 'G'}},
}

// scriptMarkers are byte patterns that never belong in an identity document.
// Matching is case-insensitive over the signature window.
var scriptMarkers = []string{
	"<script", "javascript:", "vbscript:", "onload=", "onerror=",
}

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
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

// execute runs the upload gauntlet: category, size, declared type, magic
// bytes, script scan. Security rejections escalate as errors; ordinary
// rule failures come back as a rejected Output the workflow can route.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.SessionID == "" {
		return nil, commonerrors.NewValidationFailedError("session id is required")
	}
	if input.FileName == "" {
		return nil, commonerrors.NewValidationFailedError("file name is required")
	}

	if !models.DocumentType(input.DocumentType).IsValid() {
		return reject(input, fmt.Sprintf("unknown document type: %s", input.DocumentType)), nil
	}
	if models.DocumentType(input.DocumentType) == models.DocNationalID && input.NationalID != "" {
		if !validation.IsNationalID(input.NationalID) {
			return reject(input, "national id does not match the expected format"), nil
		}
	}

	mime := strings.ToLower(strings.TrimSpace(input.MimeType))
	if _, ok := models.AllowedDocumentMIMETypes[mime]; !ok {
		return reject(input, fmt.Sprintf("unsupported file type: %s", input.MimeType)), nil
	}

	maxBytes := h.config.MaxUploadKB * 1024
	if input.SizeBytes > maxBytes {
		return reject(input, "file exceeds the 5MB limit"), nil
	}

	head, err := decodeHead(input.ContentBase64)
	if err != nil {
		return reject(input, "file content is not valid base64"), nil
	}
	if len(head) == 0 {
		return reject(input, "file is empty"), nil
	}

	if marker := findScriptMarker(head); marker != "" {
		h.logger.Warn("upload rejected for embedded script content", map[string]interface{}{
			"sessionId": input.SessionID,
			"fileName":  input.FileName,
			"marker":    marker,
		})
		return nil, commonerrors.NewSecurityViolationError(
			fmt.Sprintf("file %s contains executable content", input.FileName))
	}

	if !matchesSignature(mime, head) {
		return reject(input, fmt.Sprintf("file content does not match declared type %s", input.MimeType)), nil
	}

	return &Output{
		SessionID:    input.SessionID,
		FileName:     input.FileName,
		DocumentType: input.DocumentType,
		Accepted:     true,
	}, nil
}

func reject(input *Input, reason string) *Output {
	return &Output{
		SessionID:    input.SessionID,
		FileName:     input.FileName,
		DocumentType: input.DocumentType,
		Accepted:     false,
		Reason:       reason,
	}
}

// decodeHead decodes only as much base64 as covers the signature window.
func decodeHead(content string) ([]byte, error) {
	// 4 base64 characters decode to 3 bytes; round the window up.
	encodedLen := (signatureWindow/3 + 1) * 4
	if len(content) > encodedLen {
		content = content[:encodedLen]
	}
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		// A truncated tail group is expected when the file is larger than
		// the window; decode what is whole.
		trimmed := content[:len(content)-len(content)%4]
		decoded, err = base64.StdEncoding.DecodeString(trimmed)
		if err != nil {
			return nil, err
		}
	}
	if len(decoded) > signatureWindow {
		decoded = decoded[:signatureWindow]
	}
	return decoded, nil
}

func matchesSignature(mime string, head []byte) bool {
	for _, sig := range fileSignatures[mime] {
		if bytes.HasPrefix(head, sig) {
			return true
		}
	}
	return false
}

func findScriptMarker(head []byte) string {
	lowered := strings.ToLower(string(head))
	for _, marker := range scriptMarkers {
		if strings.Contains(lowered, marker) {
			return marker
		}
	}
	return ""
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
