package auth

import (
	"regexp"
	"strings"

	"github.com/tendant/signup-gate/pkg/domain"
)

var (
	nonDigitRegex = regexp.MustCompile(`\D`)
	phoneRegex    = regexp.MustCompile(`^\d{10,15}$`)
)

// NormalizePhone strips everything that is not a digit.
func NormalizePhone(phone string) string {
	return nonDigitRegex.ReplaceAllString(strings.TrimSpace(phone), "")
}

// ValidatePhone normalizes phone and checks it is 10-15 digits.
// It returns the normalized number.
func ValidatePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", domain.ErrPhoneRequired
	}
	normalized := NormalizePhone(phone)
	if !phoneRegex.MatchString(normalized) {
		return "", domain.ErrInvalidPhone
	}
	return normalized, nil
}

// MaskPhone hides all but the last four digits, for logs.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
