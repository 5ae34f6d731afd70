// Package onboarding implements the phone-verified signup flow: a pure
// transition core over domain.RegistrationSession, referral resolution, and
// the Controller that performs I/O (persistence, code dispatch, account
// creation) around that core.
//
// Stages move AwaitingPhone -> AwaitingCode -> AwaitingProfile. Expiry, the
// attempt cap and an explicit restart return a session to AwaitingPhone.
package onboarding

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/signup-gate/pkg/auth"
	"github.com/tendant/signup-gate/pkg/domain"
)

const (
	DefaultCodeTTL     = 10 * time.Minute
	DefaultMaxAttempts = 3
)

// Policy holds the timing and attempt limits of a challenge.
type Policy struct {
	CodeTTL     time.Duration
	MaxAttempts int
}

// DefaultPolicy returns the 10 minute / 3 attempt policy.
func DefaultPolicy() Policy {
	return Policy{CodeTTL: DefaultCodeTTL, MaxAttempts: DefaultMaxAttempts}
}

func (p Policy) withDefaults() Policy {
	if p.CodeTTL <= 0 {
		p.CodeTTL = DefaultCodeTTL
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}

// IssueChallenge moves a session awaiting a phone number to AwaitingCode
// with a fresh challenge for phone. codeHash is auth.HashCode of the code
// that was dispatched.
func (p Policy) IssueChallenge(s *domain.RegistrationSession, phone, codeHash string, now time.Time) error {
	if s.Stage != domain.StageAwaitingPhone {
		return domain.ErrStageMismatch
	}
	s.Challenge = &domain.Challenge{
		ID:        uuid.New(),
		Phone:     phone,
		CodeHash:  codeHash,
		IssuedAt:  now,
		ExpiresAt: now.Add(p.CodeTTL),
	}
	s.VerifiedPhone = ""
	s.Stage = domain.StageAwaitingCode
	return nil
}

// ReissueChallenge replaces the code of the live challenge challengeID,
// restarting its validity window and attempt counter.
func (p Policy) ReissueChallenge(s *domain.RegistrationSession, challengeID uuid.UUID, codeHash string, now time.Time) error {
	if s.Stage != domain.StageAwaitingCode || s.Challenge == nil {
		return domain.ErrNoActiveChallenge
	}
	if s.Challenge.ID != challengeID {
		// Restarted and re-issued for another number while the resend was in flight.
		return domain.ErrStageMismatch
	}
	s.Challenge.CodeHash = codeHash
	s.Challenge.IssuedAt = now
	s.Challenge.ExpiresAt = now.Add(p.CodeTTL)
	s.Challenge.AttemptCount = 0
	return nil
}

// VerifyCode checks submitted against the live challenge. Every outcome
// except ErrCodeRequired and ErrNoActiveChallenge mutates s and must be
// persisted, including the failures.
func (p Policy) VerifyCode(s *domain.RegistrationSession, submitted string, now time.Time) error {
	if s.Stage != domain.StageAwaitingCode || s.Challenge == nil {
		if s.Stage == domain.StageAwaitingCode {
			s.Stage = domain.StageAwaitingPhone
		}
		return domain.ErrNoActiveChallenge
	}

	c := s.Challenge
	if c.IsExpired(now) {
		resetToPhone(s)
		return domain.ErrChallengeExpired
	}

	submitted = strings.TrimSpace(submitted)
	if submitted == "" {
		return domain.ErrCodeRequired
	}

	if c.AttemptCount >= p.MaxAttempts {
		resetToPhone(s)
		return domain.ErrAttemptsExceeded
	}

	if !auth.CodeEqual(submitted, c.CodeHash) {
		c.AttemptCount++
		remaining := p.MaxAttempts - c.AttemptCount
		if remaining <= 0 {
			resetToPhone(s)
			return domain.ErrAttemptsExceeded
		}
		return &domain.IncorrectCodeError{Remaining: remaining}
	}

	s.VerifiedPhone = c.Phone
	s.Challenge = nil
	s.Stage = domain.StageAwaitingProfile
	return nil
}

// Restart discards any challenge and verified phone. The captured referral
// survives a restart.
func Restart(s *domain.RegistrationSession) {
	resetToPhone(s)
}

// CaptureReferral stores token as the session's referral unless one is
// already set. First seen wins.
func CaptureReferral(s *domain.RegistrationSession, token string) bool {
	token = strings.TrimSpace(token)
	if token == "" || s.ReferralToken != "" {
		return false
	}
	s.ReferralToken = token
	return true
}

// VerifiedPhone returns the phone bound by a successful verification.
func VerifiedPhone(s *domain.RegistrationSession) (string, error) {
	if s.Stage != domain.StageAwaitingProfile || s.VerifiedPhone == "" {
		return "", domain.ErrPhoneNotVerified
	}
	return s.VerifiedPhone, nil
}

// Complete tears down all registration-scoped state after the account has
// been created, referral included.
func Complete(s *domain.RegistrationSession) {
	resetToPhone(s)
	s.ReferralToken = ""
}

func resetToPhone(s *domain.RegistrationSession) {
	s.Challenge = nil
	s.VerifiedPhone = ""
	s.Stage = domain.StageAwaitingPhone
}
