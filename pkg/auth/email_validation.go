package auth

import (
	"net/mail"
	"strings"

	"github.com/tendant/signup-gate/pkg/domain"
)

// Common disposable email domains to block (can be extended)
var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"throwaway.email":   true,
}

const maxEmailLength = 254 // RFC 5321

// ValidateEmail validates an email address for format and length, and
// optionally rejects disposable domains.
func ValidateEmail(email string, blockDisposable bool) error {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return domain.ErrEmailRequired
	}
	if len(normalized) > maxEmailLength {
		return domain.ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(normalized)
	// ParseAddress accepts "Name <a@b.c>"; only a bare address is valid here.
	if err != nil || addr.Address != normalized {
		return domain.ErrInvalidEmail
	}

	if blockDisposable && disposableDomains[getDomain(addr.Address)] {
		return domain.ErrDisposableEmail
	}
	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// getDomain extracts the domain from an email address.
func getDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
