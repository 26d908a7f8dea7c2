// internal/workers/application/save-application-state/config.go
package saveapplicationstate

import "time"

type Config struct {
	Timeout        time.Duration
	SessionTTL     time.Duration
	GenerationMsg  string
	PublishOnReady bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        30 * time.Second,
		SessionTTL:     24 * time.Hour,
		GenerationMsg:  "document-generation-requested",
		PublishOnReady: true,
	}
}
