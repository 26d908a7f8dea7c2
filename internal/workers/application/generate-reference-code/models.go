// internal/workers/application/generate-reference-code/models.go
package generatereferencecode

type Input struct {
	SessionID string `json:"sessionId"`
}

type Output struct {
	SessionID     string `json:"sessionId"`
	ReferenceCode string `json:"referenceCode"`
	// AlreadyAssigned is set when the application carried a code before this
	// job ran. Codes are immutable; the existing one is returned.
	AlreadyAssigned bool `json:"alreadyAssigned,omitempty"`
}
