package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session store backends.
const (
	SessionStoreMemory   = "memory"
	SessionStorePostgres = "postgres"
)

// Gateway providers.
const (
	GatewayWebhook = "webhook"
	GatewayTwilio  = "twilio"
	GatewayLog     = "log"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int
	LogLevel   string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Session cookie signing
	SessionSecret string
	CookieSecure  bool
	CookieDomain  string

	Registration    RegistrationConfig
	Gateway         GatewayConfig
	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig

	// SMTP (optional welcome email)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
}

// RegistrationConfig holds the phone verification and attribution settings.
type RegistrationConfig struct {
	CodeTTL           time.Duration
	MaxCodeAttempts   int
	SessionIdleTTL    time.Duration
	SessionStore      string
	TrialDurationDays int
	DefaultOwnerID    uuid.UUID
	ReferrerRoles     []string
}

// GatewayConfig selects and configures the messaging gateway.
type GatewayConfig struct {
	Provider        string
	URL             string
	APIKey          string
	Timeout         time.Duration
	MessageTemplate string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromPhone  string
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled                 bool
	PhoneRequestsPerWindow  int
	PhoneWindowMinutes      int
	VerifyRequestsPerWindow int
	VerifyWindowMinutes     int
}

// SecurityHeadersConfig holds response security headers.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string
	PermissionsPolicy  string
	CacheControl       string
}

// ValidationConfig holds request validation settings.
type ValidationConfig struct {
	MaxRequestBodySize   int64
	BlockDisposableEmail bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		// Database defaults (matches podman setup: make postgres-start)
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 25432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "signup_gate"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		CookieSecure:  getEnvBool("COOKIE_SECURE", false),
		CookieDomain:  getEnv("COOKIE_DOMAIN", ""),

		Registration: RegistrationConfig{
			CodeTTL:           getEnvDuration("CODE_TTL", 10*time.Minute),
			MaxCodeAttempts:   getEnvInt("MAX_CODE_ATTEMPTS", 3),
			SessionIdleTTL:    getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SessionStore:      getEnv("SESSION_STORE", SessionStoreMemory),
			TrialDurationDays: getEnvInt("TRIAL_DURATION_DAYS", 7),
			ReferrerRoles:     getEnvList("REFERRER_ROLES", []string{"master", "admin"}),
		},

		Gateway: GatewayConfig{
			Provider:         getEnv("GATEWAY_PROVIDER", GatewayWebhook),
			URL:              getEnv("GATEWAY_URL", ""),
			APIKey:           getEnv("GATEWAY_API_KEY", ""),
			Timeout:          getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
			MessageTemplate:  getEnv("GATEWAY_MESSAGE", "Your verification code is: #code#. It expires in 10 minutes."),
			TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFromPhone:  getEnv("TWILIO_FROM_PHONE", ""),
		},

		RateLimit: RateLimitConfig{
			Enabled:                 getEnvBool("RATE_LIMIT_ENABLED", true),
			PhoneRequestsPerWindow:  getEnvInt("PHONE_REQUESTS_PER_WINDOW", 5),
			PhoneWindowMinutes:      getEnvInt("PHONE_WINDOW_MINUTES", 15),
			VerifyRequestsPerWindow: getEnvInt("VERIFY_REQUESTS_PER_WINDOW", 20),
			VerifyWindowMinutes:     getEnvInt("VERIFY_WINDOW_MINUTES", 15),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", "geolocation=(), camera=(), microphone=()"),
			CacheControl:       getEnv("SECURITY_CACHE_CONTROL", "no-store"),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize:   int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
			BlockDisposableEmail: getEnvBool("BLOCK_DISPOSABLE_EMAIL", false),
		},

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", ""),
	}

	// Validate required fields
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}

	ownerID := getEnv("DEFAULT_OWNER_ID", "")
	if ownerID == "" {
		return nil, fmt.Errorf("DEFAULT_OWNER_ID is required")
	}
	id, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_OWNER_ID must be a UUID: %w", err)
	}
	cfg.Registration.DefaultOwnerID = id

	switch cfg.Registration.SessionStore {
	case SessionStoreMemory, SessionStorePostgres:
	default:
		return nil, fmt.Errorf("SESSION_STORE must be %q or %q", SessionStoreMemory, SessionStorePostgres)
	}

	switch cfg.Gateway.Provider {
	case GatewayWebhook:
		if cfg.Gateway.URL == "" {
			return nil, fmt.Errorf("GATEWAY_URL is required for the webhook gateway")
		}
	case GatewayTwilio:
		if cfg.Gateway.TwilioAccountSID == "" || cfg.Gateway.TwilioAuthToken == "" || cfg.Gateway.TwilioFromPhone == "" {
			return nil, fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_PHONE are required for the twilio gateway")
		}
	case GatewayLog:
	default:
		return nil, fmt.Errorf("unknown GATEWAY_PROVIDER %q", cfg.Gateway.Provider)
	}

	return cfg, nil
}

// HasSMTP returns true if SMTP is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
