// internal/workers/document/select-template/handler.go
package selecttemplate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/common/metrics"
	"lending-workers/internal/models"
)

const (
	TaskType = "select-template"
)

// Template identifiers, one per application profile.
const (
	TemplateSSBLoan           = "ssb_loan_form"
	TemplateSMEAccountOpening = "sme_account_opening"
	TemplateAccountHolderLoan = "account_holder_loan"
	TemplateNewAccountOpening = "new_account_opening"
)

// Employer markers, matched case-insensitively against the employer field.
var (
	ssbEmployers = map[string]bool{
		"goz-ssb": true, "government": true, "ssb": true,
	}
	entrepreneurEmployers = map[string]bool{
		"entrepreneur": true, "self-employed": true, "sme": true,
	}
)

type Store interface {
	GetBySession(ctx context.Context, sessionID string) (*models.Application, error)
}

// Registry answers whether a template id is known. Selection still returns
// the id when the registry is unavailable; rendering does the hard check.
type Registry interface {
	Has(templateID string) bool
}

type Handler struct {
	config   *Config
	store    Store
	registry Registry
	logger   logger.Logger
}

func NewHandler(config *Config, st Store, reg Registry, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		store:    st,
		registry: reg,
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
	if input.SessionID == "" {
		return nil, commonerrors.NewValidationFailedError("session id is required")
	}

	employer := input.Employer
	hasAccount := input.HasAccount

	if employer == "" || hasAccount == nil {
		app, err := h.store.GetBySession(ctx, input.SessionID)
		if err != nil {
			return nil, commonerrors.NewApplicationNotFoundError(input.SessionID)
		}
		responses := app.FormResponses()
		if employer == "" {
			employer, _ = responses["employer"].(string)
		}
		if hasAccount == nil {
			if v, ok := responses["hasAccount"].(bool); ok {
				hasAccount = &v
			}
		}
	}

	holdsAccount := hasAccount != nil && *hasAccount
	templateID, rule := DetermineTemplate(employer, holdsAccount)

	if h.registry != nil && !h.registry.Has(templateID) {
		return nil, commonerrors.NewTemplateNotFoundError(templateID)
	}

	h.logger.Info("template selected", map[string]interface{}{
		"sessionId":  input.SessionID,
		"templateId": templateID,
		"rule":       rule,
	})

	return &Output{
		SessionID:  input.SessionID,
		TemplateID: templateID,
		Rule:       rule,
	}, nil
}

// DetermineTemplate applies the selection precedence: government payroll
// employers first, entrepreneurs second, existing account holders third,
// everyone else gets the new-account form. The first matching rule wins
// regardless of any later one; an SSB entrepreneur still gets the SSB form.
func DetermineTemplate(employer string, hasAccount bool) (templateID, rule string) {
	normalized := strings.ToLower(strings.TrimSpace(employer))

	switch {
	case ssbEmployers[normalized]:
		return TemplateSSBLoan, "ssb-employer"
	case entrepreneurEmployers[normalized]:
		return TemplateSMEAccountOpening, "entrepreneur"
	case hasAccount:
		return TemplateAccountHolderLoan, "account-holder"
	default:
		return TemplateNewAccountOpening, "default"
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
