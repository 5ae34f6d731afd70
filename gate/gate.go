// Package gate provides an embeddable phone-verified signup flow with
// referral attribution.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create a Gate instance and mount its router
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	g, err := gate.New(gate.Config{
//	    DB:             db,
//	    SessionSecret:  "your-secret-key-at-least-32-chars",
//	    DefaultOwnerID: ownerID,
//	    Sender:         mySMSSender,
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/register", g.Router())
//	http.ListenAndServe(":8080", r)
package gate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/tendant/signup-gate/internal/http/features/registration"
	"github.com/tendant/signup-gate/internal/http/middleware"
	"github.com/tendant/signup-gate/internal/httputil"
	"github.com/tendant/signup-gate/pkg/domain"
	"github.com/tendant/signup-gate/pkg/onboarding"
	"github.com/tendant/signup-gate/pkg/repository"
)

// Config holds the configuration for an embedded gate.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// SessionSecret signs the registration cookie (required, min 32 chars).
	SessionSecret string

	// DefaultOwnerID receives signups without a usable referral (required).
	DefaultOwnerID uuid.UUID

	// Sender delivers verification codes (required).
	Sender onboarding.CodeSender

	// Welcome sends the post-signup email (optional).
	Welcome onboarding.WelcomeSender

	// CodeTTL is the verification code lifetime (default: 10 minutes).
	CodeTTL time.Duration

	// MaxCodeAttempts is the number of wrong codes allowed (default: 3).
	MaxCodeAttempts int

	// SessionIdleTTL bounds abandoned registration sessions (default: 30 minutes).
	SessionIdleTTL time.Duration

	// TrialDurationDays is used when system_settings has no value (default: 7).
	TrialDurationDays int

	// ReferrerRoles are the account roles allowed to refer (default: master, admin).
	ReferrerRoles []domain.Role

	// MemorySessions keeps registration sessions in process instead of postgres.
	MemorySessions bool

	// CookieSecure sets the Secure flag on the session cookie.
	CookieSecure bool

	// Logger is the structured logger (default: slog.Default()).
	Logger *slog.Logger
}

// Gate is an embeddable registration flow.
type Gate struct {
	config     Config
	controller *onboarding.Controller
	cookie     *httputil.SessionCookie
	resolver   *onboarding.Resolver
}

// New creates a Gate. It fails if the schema is missing or the default
// owner cannot be loaded.
func New(cfg Config) (*Gate, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := repository.ValidateSchema(ctx, cfg.DB); err != nil {
		return nil, err
	}

	accounts := repository.NewAccountsRepository(cfg.DB)
	resolver := onboarding.NewResolver(accounts, cfg.DefaultOwnerID, cfg.ReferrerRoles, cfg.Logger)
	if _, err := resolver.DefaultOwner(ctx); err != nil {
		return nil, fmt.Errorf("default owner %s: %w", cfg.DefaultOwnerID, err)
	}

	var store onboarding.SessionStore
	if cfg.MemorySessions {
		store = onboarding.NewMemoryStore(cfg.SessionIdleTTL)
	} else {
		store = repository.NewRegistrationSessionsRepository(cfg.DB, cfg.SessionIdleTTL)
	}

	controller := onboarding.NewController(
		onboarding.ControllerConfig{
			Policy: onboarding.Policy{CodeTTL: cfg.CodeTTL, MaxAttempts: cfg.MaxCodeAttempts},
		},
		store,
		accounts,
		cfg.Sender,
		resolver,
		repository.NewSettingsRepository(cfg.DB, cfg.TrialDurationDays, cfg.Logger),
		cfg.Logger,
	)
	if cfg.Welcome != nil {
		controller.WithWelcomeSender(cfg.Welcome)
	}

	return &Gate{
		config:     cfg,
		controller: controller,
		cookie:     newCookie(cfg),
		resolver:   resolver,
	}, nil
}

// Router returns a chi router with the registration routes.
// Mount this on your main router:
//
//	r.Mount("/register", g.Router())
//
// Routes:
//
//	GET  /          - Current stage (captures ?ref=)
//	POST /phone     - Submit phone number and send a code
//	POST /resend    - Send a new code
//	POST /code      - Verify the code
//	POST /profile   - Create the account
//	POST /restart   - Return to phone entry
func (g *Gate) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recover(g.config.Logger))
	r.Use(middleware.Logging(g.config.Logger))

	h := registration.NewHandler(g.config.Logger, g.controller, g.cookie)
	noop := middleware.NoRateLimit()
	h.RegisterRoutes(r, noop, noop)

	return r
}

// Handler returns an http.Handler for mounting with http.StripPrefix.
func (g *Gate) Handler() http.Handler {
	return g.Router()
}

// Controller returns the registration controller for advanced usage.
func (g *Gate) Controller() *onboarding.Controller {
	return g.controller
}

// PurgeIdle removes abandoned registration sessions. Call it periodically
// when sessions are stored in postgres.
func (g *Gate) PurgeIdle(ctx context.Context) (int, error) {
	return g.controller.PurgeIdle(ctx)
}

func newCookie(cfg Config) *httputil.SessionCookie {
	cookieConfig := httputil.DefaultCookieConfig()
	cookieConfig.Secure = cfg.CookieSecure
	return httputil.NewSessionCookie([]byte(cfg.SessionSecret), cfg.SessionIdleTTL, cookieConfig)
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("gate: DB is required")
	}
	if cfg.SessionSecret == "" {
		return errors.New("gate: SessionSecret is required")
	}
	if len(cfg.SessionSecret) < 32 {
		return errors.New("gate: SessionSecret must be at least 32 characters")
	}
	if cfg.DefaultOwnerID == uuid.Nil {
		return errors.New("gate: DefaultOwnerID is required")
	}
	if cfg.Sender == nil {
		return errors.New("gate: Sender is required")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.CodeTTL == 0 {
		cfg.CodeTTL = onboarding.DefaultCodeTTL
	}
	if cfg.MaxCodeAttempts == 0 {
		cfg.MaxCodeAttempts = onboarding.DefaultMaxAttempts
	}
	if cfg.SessionIdleTTL == 0 {
		cfg.SessionIdleTTL = onboarding.DefaultIdleTTL
	}
	if cfg.TrialDurationDays == 0 {
		cfg.TrialDurationDays = 7
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}
