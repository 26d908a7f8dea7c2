// internal/workers/application/save-application-state/models.go
package saveapplicationstate

import "lending-workers/internal/common/validation"

type Input struct {
	SessionID string                 `json:"sessionId"`
	UserID    string                 `json:"userId"`
	Channel   string                 `json:"channel"`
	Step      string                 `json:"step"`
	FormData  map[string]interface{} `json:"formData,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Output reports the accepted state. Rejections never produce an Output;
// they surface as errors carrying the validation detail.
type Output struct {
	Saved       bool                         `json:"saved"`
	SessionID   string                       `json:"sessionId"`
	CurrentStep string                       `json:"currentStep"`
	Priority    string                       `json:"priority"`
	Errors      []validation.ValidationError `json:"errors,omitempty"`
}
