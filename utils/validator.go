// utils/validator.go - Input validation
package utils

import (
	"regexp"
	"strings"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	pfNumberRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9./-]{1,31}$`)
)

// ValidateEmail checks if email is valid
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePFNumber checks the personnel-file number format (e.g. "PF.1234", "12345").
func ValidatePFNumber(pf string) bool {
	return pfNumberRegex.MatchString(strings.TrimSpace(pf))
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}
