// internal/workers/document/generate-document/config.go
package generatedocument

import "time"

type Config struct {
	// Timeout bounds the whole job including backoff waits, not one attempt.
	Timeout time.Duration
	// AttemptTimeout caps a single generation attempt.
	AttemptTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	OutputDir      string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        30 * time.Minute,
		AttemptTimeout: 5 * time.Minute,
		MaxAttempts:    3,
		BackoffBase:    2 * time.Minute,
		OutputDir:      "/var/lib/lending-workers/documents",
	}
}
