package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/signup-gate/pkg/domain"
)

// AccountFinder looks accounts up by id.
type AccountFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// DefaultReferrerRoles are the roles allowed to refer new accounts.
var DefaultReferrerRoles = []domain.Role{domain.RoleMaster, domain.RoleAdmin}

// Resolver turns a raw referral token into a referring account id.
type Resolver struct {
	accounts     AccountFinder
	defaultOwner uuid.UUID
	roles        map[domain.Role]bool
	logger       *slog.Logger
}

// NewResolver creates a resolver that falls back to defaultOwner.
// Empty roles means DefaultReferrerRoles.
func NewResolver(accounts AccountFinder, defaultOwner uuid.UUID, roles []domain.Role, logger *slog.Logger) *Resolver {
	if len(roles) == 0 {
		roles = DefaultReferrerRoles
	}
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[domain.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return &Resolver{
		accounts:     accounts,
		defaultOwner: defaultOwner,
		roles:        allowed,
		logger:       logger,
	}
}

// DefaultOwner loads the fallback referrer's account.
func (r *Resolver) DefaultOwner(ctx context.Context) (*domain.Account, error) {
	return r.accounts.FindByID(ctx, r.defaultOwner)
}

// Resolve maps token to a referrer. A missing, malformed, unknown, inactive
// or wrong-role token resolves to the default owner with IsDefault set. The
// original token is kept in the attribution either way. Lookup failures
// other than domain.ErrAccountNotFound are returned so an outage never
// silently attributes the signup to the default owner.
func (r *Resolver) Resolve(ctx context.Context, token string) (domain.ReferralAttribution, error) {
	token = strings.TrimSpace(token)
	fallback := domain.ReferralAttribution{
		Token:      token,
		ReferrerID: r.defaultOwner,
		IsDefault:  true,
	}
	if token == "" {
		return fallback, nil
	}

	id, err := uuid.Parse(token)
	if err != nil {
		return fallback, nil
	}

	acct, err := r.accounts.FindByID(ctx, id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return fallback, nil
	}
	if err != nil {
		r.logger.Warn("referral lookup failed", "token", token, "error", err)
		return domain.ReferralAttribution{}, fmt.Errorf("failed to resolve referral: %w", err)
	}

	if !acct.IsActive() || !r.roles[acct.Role] {
		return fallback, nil
	}

	return domain.ReferralAttribution{
		Token:      token,
		ReferrerID: acct.ID,
		IsDefault:  false,
	}, nil
}
