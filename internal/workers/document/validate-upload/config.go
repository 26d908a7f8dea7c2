// internal/workers/document/validate-upload/config.go
package validateupload

import "time"

type Config struct {
	Timeout time.Duration
	// MaxUploadKB caps the accepted file size. The default matches the
	// product-wide five-megabyte ceiling.
	MaxUploadKB int64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		MaxUploadKB: 5120,
	}
}
