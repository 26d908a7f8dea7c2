// internal/workers/communication/send-notification/config.go
package sendnotification

import "time"

type Config struct {
	Timeout time.Duration
	// EmailFrom is the verified sender identity for email notifications.
	EmailFrom string
	// SMSSenderID is the alphanumeric origin shown on SMS notifications.
	SMSSenderID string
	// MessagingEndpoint receives chat-channel notifications over HTTP.
	MessagingEndpoint string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		EmailFrom:   "noreply@lending.example.com",
		SMSSenderID: "LENDING",
	}
}
