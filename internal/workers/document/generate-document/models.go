// internal/workers/document/generate-document/models.go
package generatedocument

type Input struct {
	SessionID string `json:"sessionId"`
	JobID     string `json:"jobId,omitempty"`
	Priority  string `json:"priority,omitempty"`
	// NotifyChannel picks the outcome notifier; defaults to log.
	NotifyChannel string `json:"notifyChannel,omitempty"`
	// Recipient is the notification target for email and sms channels.
	Recipient string `json:"recipient,omitempty"`
	// CallbackURL, when set, receives the outcome webhook.
	CallbackURL string                 `json:"callbackUrl,omitempty"`
	Options     map[string]interface{} `json:"options,omitempty"`
}

type Output struct {
	JobID      string `json:"jobId"`
	SessionID  string `json:"sessionId"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	DocumentID string `json:"documentId,omitempty"`
	TemplateID string `json:"templateId,omitempty"`
	Location   string `json:"location,omitempty"`
	Error      string `json:"error,omitempty"`
}
