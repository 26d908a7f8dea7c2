// internal/common/validation/fields.go
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ValidationError is one field or document level failure. Messages are
// deterministic: the same invalid input always yields the same text.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	nameRegex      = regexp.MustCompile(`^[A-Za-z][A-Za-z\s'\-]{1,99}$`)
	emailRegex     = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	// Regional mobile pattern with an optional country-code prefix.
	phoneRegex      = regexp.MustCompile(`^(\+?263|0)7[0-9]{8}$`)
	nationalIDRegex = regexp.MustCompile(`^[0-9]{2}[0-9]{6,7}[A-Z][0-9]{2}$`)
)

// Sanitize strips control characters and trims surrounding whitespace.
// All string input crosses this before any format rule runs.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// SanitizeMap sanitizes every string value in a nested form-data map in place.
func SanitizeMap(data map[string]interface{}) {
	for k, v := range data {
		switch val := v.(type) {
		case string:
			data[k] = Sanitize(val)
		case map[string]interface{}:
			SanitizeMap(val)
		case []interface{}:
			for i, item := range val {
				if s, ok := item.(string); ok {
					val[i] = Sanitize(s)
				}
			}
		}
	}
}

// IsSessionID reports whether s matches the session identifier pattern.
func IsSessionID(s string) bool {
	return sessionIDRegex.MatchString(s)
}

// IsName accepts letters, spaces, apostrophes and hyphens only.
func IsName(s string) bool {
	return nameRegex.MatchString(s)
}

// IsEmail checks RFC-shaped email addresses.
func IsEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// IsMobile checks the regional mobile pattern. Spaces and dashes are
// stripped before matching.
func IsMobile(s string) bool {
	s = strings.NewReplacer(" ", "", "-", "").Replace(s)
	return phoneRegex.MatchString(s)
}

// IsNationalID checks the national identifier format. Separators are
// stripped and the value upper-cased before matching.
func IsNationalID(s string) bool {
	s = strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(s))
	return nationalIDRegex.MatchString(s)
}

// ParseAmount parses a monetary field from string or numeric JSON values.
func ParseAmount(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("not a number")
	}
}

// MaxMonetaryAmount bounds any monetary form field.
const MaxMonetaryAmount = 1_000_000

// IsAmountInRange reports whether a monetary amount is within [0, 1,000,000].
func IsAmountInRange(amount float64) bool {
	return amount >= 0 && amount <= MaxMonetaryAmount
}
