package domain

import (
	"errors"
	"fmt"
)

// Phone verification errors
var (
	ErrPhoneRequired          = errors.New("phone number is required")
	ErrInvalidPhone           = errors.New("invalid phone number: use digits only (10-15 digits)")
	ErrPhoneAlreadyRegistered = errors.New("this phone number is already registered")
	ErrDeliveryFailed         = errors.New("failed to deliver verification code")
	ErrNoActiveChallenge      = errors.New("no active verification, request a new code")
	ErrChallengeExpired       = errors.New("verification code expired, request a new code")
	ErrAttemptsExceeded       = errors.New("too many incorrect attempts, request a new code")
	ErrIncorrectCode          = errors.New("incorrect verification code")
	ErrCodeRequired           = errors.New("verification code is required")
	ErrStageMismatch          = errors.New("action not allowed at the current registration step")
	ErrPhoneNotVerified       = errors.New("phone number has not been verified, restart the process")
)

// Profile errors
var (
	ErrUsernameRequired  = errors.New("username is required")
	ErrUsernameTooShort  = errors.New("username must be at least 3 characters")
	ErrEmailRequired     = errors.New("email is required")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrDisposableEmail   = errors.New("disposable email addresses are not allowed")
	ErrPasswordTooShort  = errors.New("password must be at least 6 characters")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrTermsNotAccepted  = errors.New("you must accept the terms of use")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrEmailTaken        = errors.New("email already registered")
	ErrAccountNotFound   = errors.New("account not found")
	ErrSessionNotFound   = errors.New("registration session not found")
)

// IncorrectCodeError is returned for a wrong code while attempts remain.
type IncorrectCodeError struct {
	Remaining int
}

func (e *IncorrectCodeError) Error() string {
	return fmt.Sprintf("incorrect code, %d attempts remaining", e.Remaining)
}

// Is makes errors.Is(err, ErrIncorrectCode) hold.
func (e *IncorrectCodeError) Is(target error) bool {
	return target == ErrIncorrectCode
}

// ErrorKind classifies a failure so callers can render specific guidance.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindConflict          ErrorKind = "conflict"
	KindDelivery          ErrorKind = "delivery"
	KindExpired           ErrorKind = "expired"
	KindAttemptsExceeded  ErrorKind = "attempts_exceeded"
	KindNoActiveChallenge ErrorKind = "no_active_challenge"
	KindPersistence       ErrorKind = "persistence"
)

var validationErrors = []error{
	ErrPhoneRequired, ErrInvalidPhone, ErrIncorrectCode, ErrCodeRequired,
	ErrStageMismatch, ErrPhoneNotVerified,
	ErrUsernameRequired, ErrUsernameTooShort, ErrEmailRequired, ErrInvalidEmail,
	ErrDisposableEmail, ErrPasswordTooShort, ErrPasswordMismatch, ErrTermsNotAccepted,
}

var conflictErrors = []error{ErrPhoneAlreadyRegistered, ErrUsernameTaken, ErrEmailTaken}

// KindOf classifies err. Unrecognized errors are persistence failures.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDeliveryFailed):
		return KindDelivery
	case errors.Is(err, ErrChallengeExpired):
		return KindExpired
	case errors.Is(err, ErrAttemptsExceeded):
		return KindAttemptsExceeded
	case errors.Is(err, ErrNoActiveChallenge):
		return KindNoActiveChallenge
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return KindConflict
		}
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return KindValidation
		}
	}
	return KindPersistence
}

var specialErrors = []error{ErrDeliveryFailed, ErrChallengeExpired, ErrAttemptsExceeded, ErrNoActiveChallenge}

// PublicMessage returns the user-facing text of the registration error
// wrapped in err, or "" when err wraps none of them.
func PublicMessage(err error) string {
	var incorrect *IncorrectCodeError
	if errors.As(err, &incorrect) {
		return incorrect.Error()
	}
	for _, list := range [][]error{specialErrors, conflictErrors, validationErrors} {
		for _, target := range list {
			if errors.Is(err, target) {
				return target.Error()
			}
		}
	}
	return ""
}
