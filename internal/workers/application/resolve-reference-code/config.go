// internal/workers/application/resolve-reference-code/config.go
package resolvereferencecode

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
