// internal/workers/document/validate-upload/models.go
package validateupload

type Input struct {
	SessionID string `json:"sessionId"`
	FileName  string `json:"fileName"`
	// DocumentType is one of the fixed upload categories.
	DocumentType string `json:"documentType"`
	// NationalID is the identifier printed on the document. Optional, but
	// checked against the national format when the type is national_id.
	NationalID string `json:"nationalId,omitempty"`
	MimeType   string `json:"mimeType"`
	SizeBytes  int64  `json:"sizeBytes"`
	// ContentBase64 carries the file bytes. Only the leading kilobyte is
	// inspected for content checks; the rest passes through untouched.
	ContentBase64 string `json:"contentBase64"`
}

type Output struct {
	SessionID    string `json:"sessionId"`
	FileName     string `json:"fileName"`
	DocumentType string `json:"documentType"`
	Accepted     bool   `json:"accepted"`
	Reason       string `json:"reason,omitempty"`
}
