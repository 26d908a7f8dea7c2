// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lending-workers/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	idAdd := addCmd.String("id", "", "Template ID (e.g., ssb_loan_form)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., SSB Loan Form)")
	description := addCmd.String("description", "", "Description")
	family := addCmd.String("family", "", "Template family (loan or account)")
	version := addCmd.String("version", "1.0.0", "Version")
	outputMime := addCmd.String("outputMime", "application/pdf", "Output MIME type")
	requiredFields := addCmd.String("requiredFields", "", "Comma-separated list of required form fields")
	addCmd.StringVar(&registryPath, "path", "configs/template-registry.json", "Path to registry file")

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Template ID to update")
	field := updateCmd.String("field", "", "Field to update (version, displayName, description, family, outputMime, requiredFields)")
	value := updateCmd.String("value", "", "New value for the field")
	updateCmd.StringVar(&registryPath, "path", "configs/template-registry.json", "Path to registry file")

	// Validate command flags
	validateCmd.StringVar(&registryPath, "path", "configs/template-registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *family == "" {
			fmt.Println("Error: id, displayName, and family are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		tpl := registry.Template{
			ID:             *idAdd,
			DisplayName:    *displayName,
			Description:    *description,
			Family:         *family,
			Version:        *version,
			OutputMIME:     *outputMime,
			RequiredFields: splitFields(*requiredFields),
			Tags:           []string{},
		}
		if err := addTemplate(&tpl); err != nil {
			fmt.Printf("Error adding template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added template: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateTemplate(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated template %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func splitFields(csv string) []string {
	if csv == "" {
		return []string{}
	}
	parts := strings.Split(csv, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	return fields
}

func addTemplate(tpl *registry.Template) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		// If file doesn't exist, create new registry
		if os.IsNotExist(err) {
			reg = &registry.TemplateRegistry{
				Version:     "1.0.0",
				LastUpdated: time.Now().Format(time.RFC3339),
				Templates:   []registry.Template{},
			}
		} else {
			return fmt.Errorf("failed to load registry: %w", err)
		}
	}

	if reg.Has(tpl.ID) {
		return fmt.Errorf("template with ID %s already exists", tpl.ID)
	}

	reg.Templates = append(reg.Templates, *tpl)
	reg.LastUpdated = time.Now().Format(time.RFC3339)

	if err := reg.Validate(); err != nil {
		return err
	}
	return saveRegistry(reg, registryPath)
}

func updateTemplate(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	found := false
	for i := range reg.Templates {
		if reg.Templates[i].ID == id {
			found = true
			switch field {
			case "version":
				reg.Templates[i].Version = value
			case "displayName":
				reg.Templates[i].DisplayName = value
			case "description":
				reg.Templates[i].Description = value
			case "family":
				reg.Templates[i].Family = value
			case "outputMime":
				reg.Templates[i].OutputMIME = value
			case "requiredFields":
				reg.Templates[i].RequiredFields = splitFields(value)
			default:
				return fmt.Errorf("unknown field: %s", field)
			}
			break
		}
	}

	if !found {
		return fmt.Errorf("template with ID %s not found", id)
	}

	reg.LastUpdated = time.Now().Format(time.RFC3339)

	if err := reg.Validate(); err != nil {
		return err
	}
	return saveRegistry(reg, registryPath)
}

func validateRegistry() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if len(reg.Templates) == 0 {
		return fmt.Errorf("registry contains no templates")
	}

	fmt.Printf("Registry validation passed. Found %d templates.\n", len(reg.Templates))
	return nil
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.TemplateRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	return nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a new template to the registry
  update   Update an existing template's field
  validate Validate the registry file
  help     Show this help message

Examples:
  registry-updater add -id ssb_loan_form -displayName "SSB Loan Form" -description "Salary service bureau loan application" -family loan -requiredFields firstName,lastName,loanAmount
  registry-updater update -id ssb_loan_form -field version -value 1.1.0
  registry-updater validate -path configs/template-registry.json

Use 'registry-updater <command> -h' for more information about a command.`)
}
