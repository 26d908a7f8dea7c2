// internal/workers/communication/send-notification/models.go
package sendnotification

import "time"

type Input struct {
	SessionID string `json:"sessionId"`
	// Channel picks the notifier. It is always an explicit configuration
	// value; nothing is inferred from the recipient.
	Channel   string `json:"channel"`
	Recipient string `json:"recipient,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Message   string `json:"message"`
	// Data carries structured outcome fields alongside the message text.
	Data map[string]interface{} `json:"data,omitempty"`
}

type Output struct {
	Success   bool      `json:"success"`
	Channel   string    `json:"channel"`
	MessageID string    `json:"messageId,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}
