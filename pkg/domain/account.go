package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is an account's role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMaster Role = "master"
	RoleUser   Role = "user"
)

// Status is an account's lifecycle status.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Account represents a registered account.
type Account struct {
	ID              uuid.UUID
	Username        string
	Email           string
	Phone           string
	Role            Role
	Status          Status
	ParentID        *uuid.UUID
	ReferralToken   *string
	ReferralDefault bool
	TrialEndsAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive returns true if the account status is active.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// NewAccount holds everything needed to create an account at the end of
// the registration flow.
type NewAccount struct {
	Username          string
	Email             string
	Phone             string
	Password          string
	Referral          ReferralAttribution
	TrialDurationDays int
}
