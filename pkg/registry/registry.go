// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse template registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Lookup finds a template by id.
func (r *TemplateRegistry) Lookup(id string) (*Template, bool) {
	for i := range r.Templates {
		if r.Templates[i].ID == id {
			return &r.Templates[i], true
		}
	}
	return nil, false
}

// Has reports whether the id is registered.
func (r *TemplateRegistry) Has(id string) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Validate checks registry integrity: unique non-empty ids, known families,
// and well-formed data schemas.
func (r *TemplateRegistry) Validate() error {
	if r.Version == "" {
		return fmt.Errorf("registry version is required")
	}
	seen := make(map[string]bool, len(r.Templates))
	for _, tpl := range r.Templates {
		if tpl.ID == "" {
			return fmt.Errorf("template with empty id")
		}
		if seen[tpl.ID] {
			return fmt.Errorf("duplicate template id: %s", tpl.ID)
		}
		seen[tpl.ID] = true

		switch tpl.Family {
		case "loan", "account":
		default:
			return fmt.Errorf("template %s has unknown family: %s", tpl.ID, tpl.Family)
		}

		if tpl.DataSchema != nil {
			loader := gojsonschema.NewGoLoader(tpl.DataSchema)
			if _, err := gojsonschema.NewSchema(loader); err != nil {
				return fmt.Errorf("template %s has invalid data schema: %w", tpl.ID, err)
			}
		}
	}
	return nil
}

// ValidateData checks prepared template data against the template's schema.
// Templates without a schema accept any data.
func (t *Template) ValidateData(data map[string]interface{}) error {
	for _, field := range t.RequiredFields {
		v, ok := data[field]
		if !ok || v == nil || v == "" {
			return fmt.Errorf("template %s requires field %s", t.ID, field)
		}
	}

	if t.DataSchema == nil {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(t.DataSchema),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		return fmt.Errorf("validate template data: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("template data invalid: %s", strings.Join(msgs, "; "))
	}
	return nil
}
