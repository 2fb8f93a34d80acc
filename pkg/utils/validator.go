package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
)

// NormalizeCurrency upper-cases an ISO 4217 style code and checks its shape
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !currencyCode.MatchString(code) {
		return "", fmt.Errorf("currency must be a 3-letter code: %q", code)
	}
	return code, nil
}

// SanitizeString strips control characters except tab and newline, and
// trims surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
