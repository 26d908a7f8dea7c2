// internal/workers/document/validate-application-data/models.go
package validateapplicationdata

import "lending-workers/internal/common/validation"

type Input struct {
	SessionID string `json:"sessionId"`
}

type Output struct {
	SessionID string                       `json:"sessionId"`
	Valid     bool                         `json:"valid"`
	Errors    []validation.ValidationError `json:"errors,omitempty"`
}
