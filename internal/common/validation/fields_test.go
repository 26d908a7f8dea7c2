// internal/common/validation/fields_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"trims whitespace", "  John  ", "John"},
		{"strips control characters", "Jo\x00hn\x07", "John"},
		{"strips newlines and tabs", "Jo\nhn\t", "John"},
		{"keeps inner spaces", "John Smith", "John Smith"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitizeMap_Nested(t *testing.T) {
	data := map[string]interface{}{
		"language": " en \x00",
		"formResponses": map[string]interface{}{
			"firstName": "\tTendai ",
		},
		"tags": []interface{}{" a ", 42},
	}

	SanitizeMap(data)

	assert.Equal(t, "en", data["language"])
	inner := data["formResponses"].(map[string]interface{})
	assert.Equal(t, "Tendai", inner["firstName"])
	assert.Equal(t, "a", data["tags"].([]interface{})[0])
	assert.Equal(t, 42, data["tags"].([]interface{})[1])
}

func TestIsName(t *testing.T) {
	assert.True(t, IsName("Tendai"))
	assert.True(t, IsName("Mary-Anne O'Brien"))
	assert.False(t, IsName("T3ndai"))
	assert.False(t, IsName("<script>"))
	assert.False(t, IsName(""))
}

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("user@example.com"))
	assert.True(t, IsEmail("first.last+tag@sub.example.co.zw"))
	assert.False(t, IsEmail("not-an-email"))
	assert.False(t, IsEmail("user@"))
}

func TestIsMobile(t *testing.T) {
	assert.True(t, IsMobile("0771234567"))
	assert.True(t, IsMobile("+263771234567"))
	assert.True(t, IsMobile("077 123 4567"))
	assert.True(t, IsMobile("077-123-4567"))
	assert.False(t, IsMobile("12345"))
	assert.False(t, IsMobile("0661234567"))
}

func TestIsNationalID(t *testing.T) {
	assert.True(t, IsNationalID("63123456A78"))
	assert.True(t, IsNationalID("63-123456-a-78"))
	assert.False(t, IsNationalID("ABC"))
	assert.False(t, IsNationalID("631234567890"))
}

func TestIsSessionID(t *testing.T) {
	assert.True(t, IsSessionID("sess_2024-01-abc"))
	assert.False(t, IsSessionID("bad session"))
	assert.False(t, IsSessionID("semi;colon"))
}

func TestIsAmountInRange(t *testing.T) {
	assert.True(t, IsAmountInRange(0))
	assert.True(t, IsAmountInRange(1_000_000))
	assert.False(t, IsAmountInRange(-1))
	assert.False(t, IsAmountInRange(1_000_001))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("2500.50")
	assert.NoError(t, err)
	assert.Equal(t, 2500.50, v)

	v, err = ParseAmount(float64(300))
	assert.NoError(t, err)
	assert.Equal(t, float64(300), v)

	_, err = ParseAmount(map[string]interface{}{})
	assert.Error(t, err)
}
