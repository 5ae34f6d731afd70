package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/signup-gate/pkg/auth"
	"github.com/tendant/signup-gate/pkg/domain"
)

// AccountsRepository handles account persistence.
type AccountsRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewAccountsRepository creates a new accounts repository.
func NewAccountsRepository(db *sql.DB) *AccountsRepository {
	return &AccountsRepository{db: db, now: time.Now}
}

const accountColumns = `
	id, username, email, phone, role, status, parent_id, referral_token,
	referral_default, trial_ends_at, created_at, updated_at
`

func scanAccount(row interface{ Scan(...any) error }) (*domain.Account, error) {
	a := &domain.Account{}
	var parentID uuid.NullUUID
	var token sql.NullString
	var trialEndsAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.Phone, &a.Role, &a.Status, &parentID, &token,
		&a.ReferralDefault, &trialEndsAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		a.ParentID = &parentID.UUID
	}
	if token.Valid {
		a.ReferralToken = &token.String
	}
	if trialEndsAt.Valid {
		a.TrialEndsAt = &trialEndsAt.Time
	}
	return a, nil
}

// FindByID retrieves an account by ID.
func (r *AccountsRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return a, nil
}

// FindByPhone retrieves an account by normalized phone number.
func (r *AccountsRepository) FindByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE phone = $1`
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return a, nil
}

// Create hashes the password and inserts a new active user account
// attributed to the resolved referrer.
func (r *AccountsRepository) Create(ctx context.Context, n domain.NewAccount) (*domain.Account, error) {
	hash, err := auth.HashPassword(n.Password)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	a := &domain.Account{
		ID:              uuid.New(),
		Username:        n.Username,
		Email:           n.Email,
		Phone:           n.Phone,
		Role:            domain.RoleUser,
		Status:          domain.StatusActive,
		ReferralDefault: n.Referral.IsDefault,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if n.Referral.ReferrerID != uuid.Nil {
		parent := n.Referral.ReferrerID
		a.ParentID = &parent
	}
	if n.Referral.Token != "" {
		token := n.Referral.Token
		a.ReferralToken = &token
	}
	if n.TrialDurationDays > 0 {
		ends := now.AddDate(0, 0, n.TrialDurationDays)
		a.TrialEndsAt = &ends
	}

	err = Tx(ctx, r.db, func(tx *sql.Tx) error {
		if err := checkAvailable(ctx, tx, a); err != nil {
			return err
		}
		return insertAccount(ctx, tx, a, hash)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// checkAvailable reports friendly conflicts before the insert. The unique
// constraints still decide races.
func checkAvailable(ctx context.Context, q Querier, a *domain.Account) error {
	checks := []struct {
		query string
		arg   string
		err   error
	}{
		{`SELECT EXISTS(SELECT 1 FROM accounts WHERE LOWER(username) = LOWER($1))`, a.Username, domain.ErrUsernameTaken},
		{`SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`, a.Email, domain.ErrEmailTaken},
		{`SELECT EXISTS(SELECT 1 FROM accounts WHERE phone = $1)`, a.Phone, domain.ErrPhoneAlreadyRegistered},
	}
	for _, c := range checks {
		var exists bool
		if err := q.QueryRowContext(ctx, c.query, c.arg).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check account availability: %w", err)
		}
		if exists {
			return c.err
		}
	}
	return nil
}

func insertAccount(ctx context.Context, q Querier, a *domain.Account, passwordHash string) error {
	query := `
		INSERT INTO accounts (id, username, email, phone, password_hash, role, status,
		                      parent_id, referral_token, referral_default, trial_ends_at,
		                      created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := q.ExecContext(ctx, query,
		a.ID, a.Username, a.Email, a.Phone, passwordHash, a.Role, a.Status,
		a.ParentID, a.ReferralToken, a.ReferralDefault, a.TrialEndsAt,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return mapAccountError(err)
	}
	return nil
}

// mapAccountError translates unique violations on accounts into domain
// conflicts.
func mapAccountError(err error) error {
	constraint, ok := uniqueConstraint(err)
	if !ok {
		return fmt.Errorf("failed to create account: %w", err)
	}
	switch constraint {
	case "accounts_username_key", "accounts_username_lower_idx":
		return domain.ErrUsernameTaken
	case "accounts_email_key":
		return domain.ErrEmailTaken
	case "accounts_phone_key":
		return domain.ErrPhoneAlreadyRegistered
	default:
		return fmt.Errorf("failed to create account: %w", err)
	}
}
