package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a session's position in the registration flow.
type Stage string

const (
	StageAwaitingPhone   Stage = "awaiting_phone"
	StageAwaitingCode    Stage = "awaiting_code"
	StageAwaitingProfile Stage = "awaiting_profile"
)

// Challenge is the outstanding one-time-code record for a session.
// CodeHash is the SHA-256 of the code; the code itself is never stored.
type Challenge struct {
	ID           uuid.UUID `json:"id"`
	Phone        string    `json:"phone"`
	CodeHash     string    `json:"code_hash"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	AttemptCount int       `json:"attempt_count"`
}

// IsExpired reports whether the challenge validity window has passed.
func (c *Challenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ReferralAttribution is the referral captured for a session and, once
// resolved, the referring account.
type ReferralAttribution struct {
	Token      string    `json:"token,omitempty"`
	ReferrerID uuid.UUID `json:"referrer_id"`
	IsDefault  bool      `json:"is_default"`
}

// RegistrationSession is the registration-scoped state of a browser session.
type RegistrationSession struct {
	ID            uuid.UUID  `json:"id"`
	Stage         Stage      `json:"stage"`
	Challenge     *Challenge `json:"challenge,omitempty"`
	VerifiedPhone string     `json:"verified_phone,omitempty"`
	ReferralToken string     `json:"referral_token,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewRegistrationSession returns an empty session in the initial stage.
func NewRegistrationSession(id uuid.UUID, now time.Time) *RegistrationSession {
	return &RegistrationSession{
		ID:        id,
		Stage:     StageAwaitingPhone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsIdle reports whether the session has not been touched within ttl.
func (s *RegistrationSession) IsIdle(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.UpdatedAt) > ttl
}

// Clone returns a deep copy so a mutation can be discarded on failure.
func (s *RegistrationSession) Clone() *RegistrationSession {
	c := *s
	if s.Challenge != nil {
		ch := *s.Challenge
		c.Challenge = &ch
	}
	return &c
}
