// internal/models/document.go
package models

// DocumentType is the fixed category of an uploaded document.
type DocumentType string

const (
	DocNationalID       DocumentType = "national_id"
	DocProofOfResidence DocumentType = "proof_of_residence"
	DocPayslip          DocumentType = "payslip"
	DocBankStatement    DocumentType = "bank_statement"
	DocSelfie           DocumentType = "selfie"
)

// IsValid reports whether the type is a known category.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocNationalID, DocProofOfResidence, DocPayslip, DocBankStatement, DocSelfie:
		return true
	}
	return false
}

// AllowedDocumentMIMETypes is the upload allow-list.
var AllowedDocumentMIMETypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpg":       {},
	"image/jpeg":      {},
	"image/png":       {},
}

// UploadedDocument is the metadata recorded for one uploaded file, as seen by
// the data validator. File bytes live behind the storage boundary.
type UploadedDocument struct {
	Name      string       `json:"name"`
	Type      DocumentType `json:"type"`
	MimeType  string       `json:"mimeType"`
	SizeBytes int64        `json:"sizeBytes"`
	Location  string       `json:"location,omitempty"`
}
