// internal/workers/document/validate-upload/handler_test.go
package validateupload

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/logger"
)

func pdfBytes(extra string) []byte {
	return append([]byte("%PDF-1.7\n"), []byte(extra)...)
}

func encode(content []byte) string {
	return base64.StdEncoding.EncodeToString(content)
}

func validInput(content []byte) *Input {
	return &Input{
		SessionID:     "session-abc",
		FileName:      "id.pdf",
		DocumentType:  "national_id",
		MimeType:      "application/pdf",
		SizeBytes:     int64(len(content)),
		ContentBase64: encode(content),
	}
}

func newTestHandler(t *testing.T) *Handler {
	return NewHandler(LoadConfig(), logger.NewTestLogger(t))
}

func TestExecute_AcceptsValidPDF(t *testing.T) {
	h := newTestHandler(t)

	output, err := h.Execute(context.Background(), validInput(pdfBytes("content")))

	require.NoError(t, err)
	assert.True(t, output.Accepted)
	assert.Empty(t, output.Reason)
}

func TestExecute_AcceptsImageSignatures(t *testing.T) {
	tests := []struct {
		name    string
		mime    string
		content []byte
	}{
		{"jpeg", "image/jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}},
		{"jpg alias", "image/jpg", []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x20}},
		{"png", "image/png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t)
			input := validInput(tt.content)
			input.FileName = "photo.bin"
			input.MimeType = tt.mime
			input.DocumentType = "selfie"

			output, err := h.Execute(context.Background(), input)
			require.NoError(t, err)
			assert.True(t, output.Accepted)
		})
	}
}

func TestExecute_RejectsMismatchedSignature(t *testing.T) {
	h := newTestHandler(t)

	// Declared as PDF, actually a PNG.
	input := validInput([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A})

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, output.Accepted)
	assert.Contains(t, output.Reason, "does not match declared type")
}

func TestExecute_ChecksNationalIDWhenSupplied(t *testing.T) {
	h := newTestHandler(t)

	input := validInput(pdfBytes("content"))
	input.NationalID = "63-123456 A 53"
	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, output.Accepted)

	input = validInput(pdfBytes("content"))
	input.NationalID = "not-an-id"
	output, err = h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, output.Accepted)
	assert.Equal(t, "national id does not match the expected format", output.Reason)

	// The identifier only applies to national_id uploads; other document
	// types ignore it.
	input = validInput(pdfBytes("content"))
	input.DocumentType = "payslip"
	input.NationalID = "not-an-id"
	output, err = h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, output.Accepted)
}

func TestExecute_RejectsUnsupportedMimeType(t *testing.T) {
	h := newTestHandler(t)
	input := validInput(pdfBytes(""))
	input.MimeType = "application/zip"

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, output.Accepted)
	assert.Contains(t, output.Reason, "unsupported file type")
}

func TestExecute_RejectsOversizeFile(t *testing.T) {
	h := newTestHandler(t)
	input := validInput(pdfBytes(""))
	input.SizeBytes = 6 * 1024 * 1024

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, output.Accepted)
	assert.Equal(t, "file exceeds the 5MB limit", output.Reason)
}

func TestExecute_RejectsUnknownDocumentType(t *testing.T) {
	h := newTestHandler(t)
	input := validInput(pdfBytes(""))
	input.DocumentType = "diary"

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, output.Accepted)
	assert.Contains(t, output.Reason, "unknown document type")
}

func TestExecute_ScriptContentIsASecurityViolation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"script tag", "<script>alert(1)</script>"},
		{"uppercase tag", "<SCRIPT>x</SCRIPT>"},
		{"javascript url", "javascript:void(0)"},
		{"event handler", "onerror=steal()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t)
			input := validInput(pdfBytes(tt.payload))

			_, err := h.Execute(context.Background(), input)
			require.Error(t, err)
			assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeSecurityViolation))
		})
	}
}

func TestExecute_ScriptBeyondWindowIsNotScanned(t *testing.T) {
	// Content checks cover only the first kilobyte.
	h := newTestHandler(t)
	padding := bytes.Repeat([]byte{'A'}, 2048)
	content := append(pdfBytes(""), padding...)
	content = append(content, []byte("<script>")...)

	output, err := h.Execute(context.Background(), validInput(content))
	require.NoError(t, err)
	assert.True(t, output.Accepted)
}

func TestExecute_RejectsMalformedBase64(t *testing.T) {
	h := newTestHandler(t)
	input := validInput(pdfBytes(""))
	input.ContentBase64 = "!!not-base64"

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, output.Accepted)
	assert.Equal(t, "file content is not valid base64", output.Reason)
}

func TestExecute_RejectsEmptyFile(t *testing.T) {
	h := newTestHandler(t)
	input := validInput(nil)

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, output.Accepted)
	assert.Equal(t, "file is empty", output.Reason)
}

func TestExecute_MissingIdentifiers(t *testing.T) {
	h := newTestHandler(t)

	_, err := h.Execute(context.Background(), &Input{FileName: "id.pdf"})
	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeValidationFailed))

	_, err = h.Execute(context.Background(), &Input{SessionID: "session-abc"})
	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeValidationFailed))
}
