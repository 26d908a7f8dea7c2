// internal/workers/document/generate-document/renderer.go
package generatedocument

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"lending-workers/internal/models"
	"lending-workers/pkg/registry"
)

// Renderer turns prepared template data into a stored document.
type Renderer interface {
	Render(ctx context.Context, tpl *registry.Template, data map[string]interface{}) (*models.GenerationResult, error)
}

// fileRenderer writes rendered documents to local disk. The location in the
// result is the absolute file path; object storage can sit behind the same
// interface later.
type fileRenderer struct {
	outputDir string
}

func NewFileRenderer(outputDir string) Renderer {
	return &fileRenderer{outputDir: outputDir}
}

func (r *fileRenderer) Render(ctx context.Context, tpl *registry.Template, data map[string]interface{}) (*models.GenerationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	documentID := uuid.New().String()
	path := filepath.Join(r.outputDir, fmt.Sprintf("%s-%s.pdf", tpl.ID, documentID))

	content := renderPDF(tpl, data)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}

	return &models.GenerationResult{
		DocumentID: documentID,
		TemplateID: tpl.ID,
		SizeBytes:  int64(len(content)),
		Location:   path,
	}, nil
}

// renderPDF emits a minimal single-page PDF listing the template fields.
// Real form layout is the template author's concern; the pipeline only
// guarantees a well-formed document per field set.
func renderPDF(tpl *registry.Template, data map[string]interface{}) []byte {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var text strings.Builder
	text.WriteString(fmt.Sprintf("BT /F1 12 Tf 50 780 Td (%s) Tj ET\n", pdfEscape(tpl.DisplayName)))
	y := 750
	for _, k := range keys {
		line := fmt.Sprintf("%s: %v", k, data[k])
		text.WriteString(fmt.Sprintf("BT /F1 10 Tf 50 %d Td (%s) Tj ET\n", y, pdfEscape(line)))
		y -= 16
		if y < 40 {
			break
		}
	}
	stream := text.String()

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, 5)

	writeObj := func(body string) {
		offsets = append(offsets, b.Len())
		b.WriteString(body)
	}

	writeObj("1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n")
	writeObj("2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj\n")
	writeObj("3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >> endobj\n")
	writeObj(fmt.Sprintf("4 0 obj << /Length %d >> stream\n%sendstream endobj\n", len(stream), stream))
	writeObj("5 0 obj << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> endobj\n")

	xrefStart := b.Len()
	b.WriteString(fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1))
	for _, off := range offsets {
		b.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	b.WriteString(fmt.Sprintf("trailer << /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefStart))

	return []byte(b.String())
}

func pdfEscape(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	return replacer.Replace(s)
}
