// internal/workers/document/select-template/models.go
package selecttemplate

type Input struct {
	SessionID string `json:"sessionId"`
	// Employer and HasAccount may also arrive inside the stored form data;
	// explicit variables win when both are present.
	Employer   string `json:"employer,omitempty"`
	HasAccount *bool  `json:"hasAccount,omitempty"`
}

type Output struct {
	SessionID  string `json:"sessionId"`
	TemplateID string `json:"templateId"`
	// Rule names the precedence branch that fired, for traceability.
	Rule string `json:"rule"`
}
