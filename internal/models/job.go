// internal/models/job.go
package models

import "time"

// JobStatus is the generation job lifecycle state.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobRetrying   JobStatus = "retrying"
	JobCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the job can make no further progress.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// GenerationJob is the ephemeral document-generation work item. It references
// an application by session id only: the application is re-read fresh at each
// attempt because it may have changed between retries.
type GenerationJob struct {
	JobID         string                 `json:"jobId"`
	SessionID     string                 `json:"sessionId"`
	Options       map[string]interface{} `json:"options,omitempty"`
	NotifyChannel NotificationChannel    `json:"notifyChannel"`
	CallbackURL   string                 `json:"callbackUrl,omitempty"`
	Priority      string                 `json:"priority,omitempty"`
	Attempts      int                    `json:"attempts"`
	Status        JobStatus              `json:"status"`
	UpdatedAt     time.Time              `json:"updatedAt"`
	Result        map[string]interface{} `json:"result,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// GenerationResult describes a successfully rendered document.
type GenerationResult struct {
	DocumentID string `json:"documentId"`
	TemplateID string `json:"templateId"`
	SizeBytes  int64  `json:"sizeBytes"`
	Location   string `json:"location"`
}

// ToMap flattens the result into a webhook/notification payload.
func (r *GenerationResult) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"documentId": r.DocumentID,
		"templateId": r.TemplateID,
		"sizeBytes":  r.SizeBytes,
		"location":   r.Location,
	}
}

// NotificationChannel selects the notifier used for job outcome fan-out.
// It is a configuration value on the job, never inferred.
type NotificationChannel string

const (
	NotifyLog       NotificationChannel = "log"
	NotifyEmail     NotificationChannel = "email"
	NotifySMS       NotificationChannel = "sms"
	NotifyMessaging NotificationChannel = "messaging"
)

// IsValid reports whether the channel belongs to the closed notifier set.
func (c NotificationChannel) IsValid() bool {
	switch c {
	case NotifyLog, NotifyEmail, NotifySMS, NotifyMessaging:
		return true
	}
	return false
}
