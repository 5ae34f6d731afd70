package gate

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/signup-gate/internal/notification"
	"github.com/tendant/signup-gate/pkg/domain"
	"github.com/tendant/signup-gate/pkg/onboarding"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestValidateConfig(t *testing.T) {
	db := &sql.DB{}
	sender := notification.NewLogSender(nil)
	owner := uuid.New()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "missing db", cfg: Config{SessionSecret: testSecret, DefaultOwnerID: owner, Sender: sender}, wantErr: "DB is required"},
		{name: "missing secret", cfg: Config{DB: db, DefaultOwnerID: owner, Sender: sender}, wantErr: "SessionSecret is required"},
		{name: "short secret", cfg: Config{DB: db, SessionSecret: "short", DefaultOwnerID: owner, Sender: sender}, wantErr: "at least 32"},
		{name: "missing owner", cfg: Config{DB: db, SessionSecret: testSecret, Sender: sender}, wantErr: "DefaultOwnerID"},
		{name: "missing sender", cfg: Config{DB: db, SessionSecret: testSecret, DefaultOwnerID: owner}, wantErr: "Sender"},
		{name: "valid", cfg: Config{DB: db, SessionSecret: testSecret, DefaultOwnerID: owner, Sender: sender}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(&tt.cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validateConfig() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateConfig() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	applyDefaults(&cfg)

	if cfg.CodeTTL != 10*time.Minute || cfg.MaxCodeAttempts != 3 {
		t.Errorf("policy defaults = %v, %d", cfg.CodeTTL, cfg.MaxCodeAttempts)
	}
	if cfg.SessionIdleTTL != onboarding.DefaultIdleTTL {
		t.Errorf("SessionIdleTTL = %v", cfg.SessionIdleTTL)
	}
	if cfg.TrialDurationDays != 7 || cfg.Logger == nil {
		t.Errorf("defaults = %+v", cfg)
	}

	custom := Config{CodeTTL: time.Minute, MaxCodeAttempts: 5}
	applyDefaults(&custom)
	if custom.CodeTTL != time.Minute || custom.MaxCodeAttempts != 5 {
		t.Errorf("custom values overwritten: %v, %d", custom.CodeTTL, custom.MaxCodeAttempts)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() should fail without a database")
	}
}

type noAccounts struct{}

func (noAccounts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return nil, domain.ErrAccountNotFound
}

func (noAccounts) FindByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	return nil, domain.ErrAccountNotFound
}

func (noAccounts) Create(ctx context.Context, n domain.NewAccount) (*domain.Account, error) {
	return nil, errors.New("storage unavailable")
}

func TestGate_RouterMounts(t *testing.T) {
	cfg := Config{SessionSecret: testSecret, DefaultOwnerID: uuid.New(), Sender: notification.NewLogSender(nil)}
	applyDefaults(&cfg)
	resolver := onboarding.NewResolver(noAccounts{}, cfg.DefaultOwnerID, nil, nil)
	g := &Gate{
		config: cfg,
		controller: onboarding.NewController(onboarding.ControllerConfig{}, onboarding.NewMemoryStore(cfg.SessionIdleTTL),
			noAccounts{}, cfg.Sender, resolver, onboarding.StaticEntitlements(7), nil),
		cookie:   newCookie(cfg),
		resolver: resolver,
	}

	r := chi.NewRouter()
	r.Mount("/register", g.Router())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/register/phone", strings.NewReader(`{"phone":"5511999999999"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"stage":"awaiting_code"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
	if len(rr.Result().Cookies()) == 0 {
		t.Error("session cookie should be set")
	}
}
