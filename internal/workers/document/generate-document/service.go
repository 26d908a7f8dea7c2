// internal/workers/document/generate-document/service.go
package generatedocument

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	commonerrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
	"lending-workers/internal/jobstatus"
	"lending-workers/internal/models"
	"lending-workers/internal/store"
	callwebhook "lending-workers/internal/workers/communication/call-webhook"
	sendnotification "lending-workers/internal/workers/communication/send-notification"
	selecttemplate "lending-workers/internal/workers/document/select-template"
	validateapplicationdata "lending-workers/internal/workers/document/validate-application-data"
	"lending-workers/pkg/registry"
)

type Store interface {
	GetBySession(ctx context.Context, sessionID string) (*models.Application, error)
}

// StatusCache is the job status surface the service writes through.
type StatusCache interface {
	Set(ctx context.Context, sessionID string, rec *jobstatus.Record) error
	IsCancelled(ctx context.Context, sessionID string) (bool, error)
}

// NotificationSender delivers outcome notifications.
type NotificationSender interface {
	Execute(ctx context.Context, input *sendnotification.Input) (*sendnotification.Output, error)
}

// WebhookCaller posts outcome callbacks.
type WebhookCaller interface {
	Execute(ctx context.Context, input *callwebhook.Input) (*callwebhook.Output, error)
}

type Registry interface {
	Lookup(id string) (*registry.Template, bool)
}

// Service runs one generation attempt and reports job lifecycle changes.
// It is the scheduler's Reporter and supplies its attempt function.
type Service struct {
	store    Store
	cache    StatusCache
	registry Registry
	renderer Renderer
	notifier NotificationSender
	webhooks WebhookCaller
	logger   logger.Logger
	now      func() time.Time
}

func NewService(st Store, cache StatusCache, reg Registry, renderer Renderer, notifier NotificationSender, webhooks WebhookCaller, log logger.Logger) *Service {
	return &Service{
		store:    st,
		cache:    cache,
		registry: reg,
		renderer: renderer,
		notifier: notifier,
		webhooks: webhooks,
		logger:   log.WithFields(map[string]interface{}{"component": "generation-service"}),
		now:      time.Now,
	}
}

// Attempt performs one generation pass. The application is re-read fresh
// every time: data may have changed since the previous attempt.
func (s *Service) Attempt(ctx context.Context, job *models.GenerationJob) (*models.GenerationResult, error) {
	app, err := s.store.GetBySession(ctx, job.SessionID)
	if err != nil {
		// Jobs are enqueued only after the application is committed, so a
		// missing row is permanent and must not burn retry attempts.
		if errors.Is(err, store.ErrNotFound) {
			return nil, commonerrors.NewApplicationNotFoundError(job.SessionID)
		}
		return nil, commonerrors.NewDatabaseError(err)
	}

	if verrs := validateapplicationdata.Validate(app, s.now()); len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, v := range verrs {
			msgs = append(msgs, v.Message)
		}
		return nil, commonerrors.NewValidationFailedError(strings.Join(msgs, "; "))
	}

	responses := app.FormResponses()
	employer, _ := responses["employer"].(string)
	hasAccount, _ := responses["hasAccount"].(bool)
	templateID, rule := selecttemplate.DetermineTemplate(employer, hasAccount)

	tpl, ok := s.registry.Lookup(templateID)
	if !ok {
		return nil, commonerrors.NewTemplateNotFoundError(templateID)
	}

	data := prepareTemplateData(app, s.now())
	for k, v := range job.Options {
		data[k] = v
	}
	if err := tpl.ValidateData(data); err != nil {
		return nil, commonerrors.NewValidationFailedError(err.Error())
	}

	result, err := s.renderer.Render(ctx, tpl, data)
	if err != nil {
		return nil, commonerrors.NewGenerationFailedError(err)
	}

	s.logger.Info("document rendered", map[string]interface{}{
		"sessionId":  job.SessionID,
		"templateId": templateID,
		"rule":       rule,
		"documentId": result.DocumentID,
		"sizeBytes":  result.SizeBytes,
	})
	return result, nil
}

// IsCancelled lets the scheduler consult the shared status record.
func (s *Service) IsCancelled(ctx context.Context, sessionID string) (bool, error) {
	return s.cache.IsCancelled(ctx, sessionID)
}

func (s *Service) OnProcessing(ctx context.Context, job *models.GenerationJob) {
	s.record(ctx, job, nil)
}

func (s *Service) OnRetryScheduled(ctx context.Context, job *models.GenerationJob, delay time.Duration, cause error) {
	s.record(ctx, job, map[string]interface{}{
		"retryInSeconds": int(delay.Seconds()),
		"lastError":      cause.Error(),
	})
}

func (s *Service) OnCompleted(ctx context.Context, job *models.GenerationJob, result *models.GenerationResult) {
	s.record(ctx, job, result.ToMap())
	s.notify(ctx, job, "Your document has been generated", result.ToMap())
	s.callback(ctx, job, result.ToMap())
}

func (s *Service) OnFailed(ctx context.Context, job *models.GenerationJob, cause error) {
	data := map[string]interface{}{}
	if cause != nil {
		data["error"] = cause.Error()
	}
	s.record(ctx, job, data)
	s.notify(ctx, job, "Document generation failed", data)
	s.callback(ctx, job, data)
}

// OnCancelled records the terminal status and nothing else. A cancelled
// job produces no render, no notification and no webhook call.
func (s *Service) OnCancelled(ctx context.Context, job *models.GenerationJob) {
	s.record(ctx, job, map[string]interface{}{
		"code": string(commonerrors.ErrCodeGenerationCancelled),
	})
}

func (s *Service) record(ctx context.Context, job *models.GenerationJob, data map[string]interface{}) {
	rec := &jobstatus.Record{
		JobID:    job.JobID,
		Status:   job.Status,
		Attempts: job.Attempts,
		Data:     data,
	}
	if err := s.cache.Set(ctx, job.SessionID, rec); err != nil {
		s.logger.Warn("failed to record job status", map[string]interface{}{
			"sessionId": job.SessionID,
			"status":    string(job.Status),
			"error":     err.Error(),
		})
	}
}

func (s *Service) notify(ctx context.Context, job *models.GenerationJob, message string, data map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	channel := job.NotifyChannel
	if channel == "" {
		channel = models.NotifyLog
	}
	_, err := s.notifier.Execute(ctx, &sendnotification.Input{
		SessionID: job.SessionID,
		Channel:   string(channel),
		Subject:   fmt.Sprintf("Application %s", job.SessionID),
		Message:   message,
		Data:      data,
	})
	if err != nil {
		// Outcome notifications are best effort, the job result stands.
		s.logger.Warn("outcome notification failed", map[string]interface{}{
			"sessionId": job.SessionID,
			"channel":   string(channel),
			"error":     err.Error(),
		})
	}
}

func (s *Service) callback(ctx context.Context, job *models.GenerationJob, data map[string]interface{}) {
	if s.webhooks == nil || job.CallbackURL == "" {
		return
	}
	_, err := s.webhooks.Execute(ctx, &callwebhook.Input{
		SessionID: job.SessionID,
		URL:       job.CallbackURL,
		Status:    string(job.Status),
		Data:      data,
	})
	if err != nil {
		s.logger.Warn("outcome webhook failed", map[string]interface{}{
			"sessionId": job.SessionID,
			"url":       job.CallbackURL,
			"error":     err.Error(),
		})
	}
}
