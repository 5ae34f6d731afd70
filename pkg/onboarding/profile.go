package onboarding

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/tendant/signup-gate/pkg/auth"
	"github.com/tendant/signup-gate/pkg/domain"
)

var profileValidate = validator.New()

// Profile is the final-stage form.
type Profile struct {
	Username        string `validate:"required,min=3"`
	Email           string `validate:"required"`
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"eqfield=Password"`
	TermsAccepted   bool   `validate:"required"`
}

// Normalize trims the username and lowercases the email. Passwords are
// taken as submitted.
func (p Profile) Normalize() Profile {
	p.Username = auth.SanitizeUsername(p.Username)
	p.Email = auth.NormalizeEmail(p.Email)
	return p
}

// ValidateProfile checks a normalized profile and returns the first failing
// rule in form order: username, email, password, confirmation, terms.
func ValidateProfile(p Profile, blockDisposableEmail bool) error {
	err := profileValidate.Struct(p)

	var verrs validator.ValidationErrors
	if err != nil && !errors.As(err, &verrs) {
		return err
	}

	failed := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		failed[fe.Field()] = fe.Tag()
	}

	switch failed["Username"] {
	case "required":
		return domain.ErrUsernameRequired
	case "min":
		return domain.ErrUsernameTooShort
	}

	if err := auth.ValidateEmail(p.Email, blockDisposableEmail); err != nil {
		return err
	}

	if _, ok := failed["Password"]; ok {
		return domain.ErrPasswordTooShort
	}
	if _, ok := failed["ConfirmPassword"]; ok {
		return domain.ErrPasswordMismatch
	}
	if _, ok := failed["TermsAccepted"]; ok {
		return domain.ErrTermsNotAccepted
	}
	return nil
}
