// internal/workers/document/validate-application-data/validator.go
package validateapplicationdata

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lending-workers/internal/common/validation"
	"lending-workers/internal/models"
)

const (
	minLoanAmount = 100
	maxLoanAmount = 100_000
	minAgeYears   = 18

	maxDocumentBytes = 5 * 1024 * 1024
)

var requiredFields = []string{
	"firstName", "lastName", "emailAddress", "mobile", "nationalIdNumber",
}

var entrepreneurFields = []string{
	"businessName", "registrationNumber", "businessType",
}

// Validate checks an application ahead of document generation. Error messages
// are deterministic: the same input always yields the same list in the same
// order, so downstream consumers can compare and deduplicate them.
func Validate(app *models.Application, now time.Time) []validation.ValidationError {
	if !app.CurrentStep.IsGenerationReady() {
		return []validation.ValidationError{{
			Field: "currentStep", Code: "NOT_COMPLETED", Message: "application not completed",
		}}
	}

	responses := app.FormResponses()
	if len(responses) == 0 {
		return []validation.ValidationError{{
			Field: "formData", Code: "MISSING", Message: "form data is missing",
		}}
	}

	var verrs []validation.ValidationError

	for _, field := range requiredFields {
		if stringField(responses, field) == "" {
			verrs = append(verrs, validation.ValidationError{
				Field: field, Code: "REQUIRED", Message: fmt.Sprintf("%s is required", field),
			})
		}
	}

	verrs = append(verrs, validateFormats(responses)...)
	verrs = append(verrs, validateLoanAmount(responses)...)
	verrs = append(verrs, validateAge(responses, now)...)
	verrs = append(verrs, validateMaritalStatus(responses)...)
	verrs = append(verrs, validateBusinessProfile(responses)...)
	verrs = append(verrs, validateDocuments(app)...)

	return verrs
}

func validateFormats(responses map[string]interface{}) []validation.ValidationError {
	var verrs []validation.ValidationError

	if v := stringField(responses, "firstName"); v != "" && !validation.IsName(v) {
		verrs = append(verrs, validation.ValidationError{
			Field: "firstName", Code: "INVALID_FORMAT", Message: "firstName contains invalid characters",
		})
	}
	if v := stringField(responses, "lastName"); v != "" && !validation.IsName(v) {
		verrs = append(verrs, validation.ValidationError{
			Field: "lastName", Code: "INVALID_FORMAT", Message: "lastName contains invalid characters",
		})
	}
	if v := stringField(responses, "emailAddress"); v != "" && !validation.IsEmail(v) {
		verrs = append(verrs, validation.ValidationError{
			Field: "emailAddress", Code: "INVALID_FORMAT", Message: "emailAddress is not a valid email address",
		})
	}
	if v := stringField(responses, "mobile"); v != "" && !validation.IsMobile(v) {
		verrs = append(verrs, validation.ValidationError{
			Field: "mobile", Code: "INVALID_FORMAT", Message: "mobile is not a valid mobile number",
		})
	}
	if v := stringField(responses, "nationalIdNumber"); v != "" && !validation.IsNationalID(v) {
		verrs = append(verrs, validation.ValidationError{
			Field: "nationalIdNumber", Code: "INVALID_FORMAT", Message: "nationalIdNumber is not a valid national id",
		})
	}
	return verrs
}

func validateLoanAmount(responses map[string]interface{}) []validation.ValidationError {
	raw, ok := responses["loanAmount"]
	if !ok || raw == nil || raw == "" {
		return nil
	}
	amount, err := validation.ParseAmount(raw)
	if err != nil {
		return []validation.ValidationError{{
			Field: "loanAmount", Code: "INVALID_FORMAT", Message: "loan amount is not a number",
		}}
	}
	if amount < minLoanAmount || amount > maxLoanAmount {
		return []validation.ValidationError{{
			Field: "loanAmount", Code: "OUT_OF_RANGE",
			Message: "loan amount must be between $100 and $100,000",
		}}
	}
	return nil
}

func validateAge(responses map[string]interface{}, now time.Time) []validation.ValidationError {
	dob := stringField(responses, "dateOfBirth")
	if dob == "" {
		return nil
	}
	parsed, err := parseDateOfBirth(dob)
	if err != nil {
		return []validation.ValidationError{{
			Field: "dateOfBirth", Code: "INVALID_FORMAT", Message: "dateOfBirth is not a valid date",
		}}
	}
	if ageAt(parsed, now) < minAgeYears {
		return []validation.ValidationError{{
			Field: "dateOfBirth", Code: "UNDERAGE",
			Message: "applicant must be at least 18 years old",
		}}
	}
	return nil
}

// parseDateOfBirth accepts ISO dates and the regional day-first form.
func parseDateOfBirth(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date: %s", s)
}

func ageAt(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	return years
}

func validateMaritalStatus(responses map[string]interface{}) []validation.ValidationError {
	status := strings.ToLower(stringField(responses, "maritalStatus"))
	if status != "married" {
		return nil
	}
	if stringField(responses, "spouseName") == "" {
		return []validation.ValidationError{{
			Field: "spouseName", Code: "REQUIRED",
			Message: "spouseName is required for married applicants",
		}}
	}
	return nil
}

func validateBusinessProfile(responses map[string]interface{}) []validation.ValidationError {
	employer := strings.ToLower(stringField(responses, "employer"))
	switch employer {
	case "entrepreneur", "self-employed", "sme":
	default:
		return nil
	}

	var verrs []validation.ValidationError
	for _, field := range entrepreneurFields {
		if stringField(responses, field) == "" {
			verrs = append(verrs, validation.ValidationError{
				Field: field, Code: "REQUIRED",
				Message: fmt.Sprintf("%s is required for business applicants", field),
			})
		}
	}
	return verrs
}

func validateDocuments(app *models.Application) []validation.ValidationError {
	docs := uploadedDocuments(app)

	var verrs []validation.ValidationError
	hasNationalID := false
	for _, doc := range docs {
		if doc.Type == models.DocNationalID {
			hasNationalID = true
		}
		if _, ok := models.AllowedDocumentMIMETypes[strings.ToLower(doc.MimeType)]; !ok {
			verrs = append(verrs, validation.ValidationError{
				Field: "documents", Code: "UNSUPPORTED_TYPE",
				Message: fmt.Sprintf("document %s has unsupported type %s", doc.Name, doc.MimeType),
			})
		}
		if doc.SizeBytes > maxDocumentBytes {
			verrs = append(verrs, validation.ValidationError{
				Field: "documents", Code: "TOO_LARGE",
				Message: fmt.Sprintf("document %s exceeds the 5MB limit", doc.Name),
			})
		}
	}
	if !hasNationalID {
		verrs = append(verrs, validation.ValidationError{
			Field: "documents", Code: "REQUIRED",
			Message: "national id document is required",
		})
	}
	return verrs
}

// uploadedDocuments reads the document list out of the form data. Entries
// arrive as generic maps from JSON; malformed ones are skipped.
func uploadedDocuments(app *models.Application) []models.UploadedDocument {
	raw, ok := app.FormData["documents"]
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var docs []models.UploadedDocument
	if err := json.Unmarshal(encoded, &docs); err != nil {
		return nil
	}
	return docs
}

func stringField(responses map[string]interface{}, key string) string {
	v, _ := responses[key].(string)
	return strings.TrimSpace(v)
}
