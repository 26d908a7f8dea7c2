// internal/refcode/refcode.go

// Package refcode issues and normalizes the short shareable codes that
// identify an application to humans, distinct from its session identifier.
package refcode

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// CodeLength is the length of an issued reference code.
const CodeLength = 6

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	codeRegex   = regexp.MustCompile(`^[A-Z0-9]{5,}$`)
	strictRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)
)

// Generate produces a 6-character uppercase alphanumeric code. Uniqueness is
// the caller's responsibility: assign it in storage and retry on collision.
func Generate() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = charset[int(b)%len(charset)]
	}
	return string(buf), nil
}

// Normalize upper-cases the input and strips spaces and dashes, so users can
// type codes however they received them.
func Normalize(s string) string {
	s = strings.ToUpper(s)
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// IsValid accepts any string of 5 or more uppercase alphanumeric characters.
// Deliberately permissive: national-identifier-shaped values are accepted as
// an alternate lookup key. Callers normalize first.
func IsValid(s string) bool {
	return codeRegex.MatchString(s)
}

// IsReferenceCode reports whether s is exactly a 6-character issued code.
func IsReferenceCode(s string) bool {
	return strictRegex.MatchString(s)
}
