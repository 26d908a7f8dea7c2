// internal/workers/application/resolve-reference-code/models.go
package resolvereferencecode

type Input struct {
	// Code is the user-supplied lookup key: a reference code in any
	// spacing or casing, or a national identifier as a fallback.
	Code string `json:"code"`
}

type Output struct {
	Found         bool   `json:"found"`
	SessionID     string `json:"sessionId,omitempty"`
	ReferenceCode string `json:"referenceCode,omitempty"`
	CurrentStep   string `json:"currentStep,omitempty"`
	Channel       string `json:"channel,omitempty"`
	// MatchedBy records which lookup succeeded: "reference_code" or
	// "national_id".
	MatchedBy string `json:"matchedBy,omitempty"`
}
