// internal/workers/application/generate-reference-code/config.go
package generatereferencecode

import "time"

type Config struct {
	Timeout     time.Duration
	MaxAttempts int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		MaxAttempts: 10,
	}
}
