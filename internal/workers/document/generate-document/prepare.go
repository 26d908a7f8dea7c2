// internal/workers/document/generate-document/prepare.go
package generatedocument

import (
	"fmt"
	"strings"
	"time"

	"lending-workers/internal/common/validation"
	"lending-workers/internal/models"
)

// prepareTemplateData flattens the application's form responses into the
// key/value map templates render from. Monetary fields are formatted with
// thousands separators, dates day-first, matching the printed forms.
func prepareTemplateData(app *models.Application, now time.Time) map[string]interface{} {
	responses := app.FormResponses()
	data := make(map[string]interface{}, len(responses)+4)

	for key, value := range responses {
		switch {
		case isMonetaryField(key):
			if amount, err := validation.ParseAmount(value); err == nil {
				data[key] = FormatCurrency(amount)
				continue
			}
			data[key] = value
		case isDateField(key):
			if s, ok := value.(string); ok {
				if formatted, err := reformatDate(s); err == nil {
					data[key] = formatted
					continue
				}
			}
			data[key] = value
		default:
			data[key] = value
		}
	}

	data["referenceCode"] = app.ReferenceCode
	data["sessionId"] = app.SessionID
	data["channel"] = string(app.Channel)
	data["generatedAt"] = FormatDate(now)

	return data
}

var monetaryFields = map[string]bool{
	"loanAmount": true, "monthlyIncome": true, "monthlyExpenses": true,
	"depositAmount": true,
}

var dateFields = map[string]bool{
	"dateOfBirth": true, "employmentStartDate": true,
}

func isMonetaryField(key string) bool { return monetaryFields[key] }
func isDateField(key string) bool     { return dateFields[key] }

// FormatCurrency renders an amount as #,##0.00.
func FormatCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	whole := fmt.Sprintf("%.2f", amount)
	dot := strings.IndexByte(whole, '.')
	intPart, fracPart := whole[:dot], whole[dot+1:]

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}

// FormatDate renders DD/MM/YYYY.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// reformatDate converts stored ISO dates to the printed day-first form.
// Already day-first input passes through unchanged.
func reformatDate(s string) (string, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return FormatDate(t), nil
	}
	if _, err := time.Parse("02/01/2006", s); err == nil {
		return s, nil
	}
	return "", fmt.Errorf("unrecognized date: %s", s)
}
