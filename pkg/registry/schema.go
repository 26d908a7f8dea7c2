// pkg/registry/schema.go
package registry

// TemplateRegistry is the versioned catalog of document templates. The file
// is the contract between template authors and the generation pipeline.
type TemplateRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Templates   []Template `json:"templates"`
}

// Template describes one renderable document.
type Template struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	// Family groups templates sharing a data contract: loan or account.
	Family  string `json:"family"`
	Version string `json:"version"`
	// RequiredFields lists the form response keys rendering cannot proceed
	// without.
	RequiredFields []string `json:"requiredFields"`
	// DataSchema is a JSON Schema applied to the prepared template data.
	DataSchema map[string]interface{} `json:"dataSchema,omitempty"`
	OutputMIME string                 `json:"outputMime"`
	Tags       []string               `json:"tags,omitempty"`
}
