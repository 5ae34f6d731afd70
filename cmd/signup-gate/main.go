package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/signup-gate/internal/config"
	httpserver "github.com/tendant/signup-gate/internal/http"
	"github.com/tendant/signup-gate/internal/httputil"
	"github.com/tendant/signup-gate/internal/notification"
	"github.com/tendant/signup-gate/pkg/domain"
	"github.com/tendant/signup-gate/pkg/onboarding"
	"github.com/tendant/signup-gate/pkg/repository"
)

const purgeInterval = 5 * time.Minute

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStartup()
	if err := repository.ValidateSchema(startupCtx, db); err != nil {
		logger.Error("database schema is not ready, run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize repositories
	accountsRepo := repository.NewAccountsRepository(db)
	settingsRepo := repository.NewSettingsRepository(db, cfg.Registration.TrialDurationDays, logger)

	var store onboarding.SessionStore
	switch cfg.Registration.SessionStore {
	case config.SessionStorePostgres:
		store = repository.NewRegistrationSessionsRepository(db, cfg.Registration.SessionIdleTTL)
	default:
		store = onboarding.NewMemoryStore(cfg.Registration.SessionIdleTTL)
	}
	logger.Info("registration session store", "backend", cfg.Registration.SessionStore)

	sender := newCodeSender(cfg.Gateway, logger)

	roles := make([]domain.Role, 0, len(cfg.Registration.ReferrerRoles))
	for _, role := range cfg.Registration.ReferrerRoles {
		roles = append(roles, domain.Role(strings.ToLower(role)))
	}
	resolver := onboarding.NewResolver(accountsRepo, cfg.Registration.DefaultOwnerID, roles, logger)
	if _, err := resolver.DefaultOwner(startupCtx); err != nil {
		logger.Error("default referral owner is not usable", "owner_id", cfg.Registration.DefaultOwnerID, "error", err)
		os.Exit(1)
	}

	controller := onboarding.NewController(
		onboarding.ControllerConfig{
			Policy: onboarding.Policy{
				CodeTTL:     cfg.Registration.CodeTTL,
				MaxAttempts: cfg.Registration.MaxCodeAttempts,
			},
			SendTimeout:          cfg.Gateway.Timeout,
			BlockDisposableEmail: cfg.Validation.BlockDisposableEmail,
		},
		store,
		accountsRepo,
		sender,
		resolver,
		settingsRepo,
		logger,
	)

	// Initialize email service if configured
	if cfg.HasSMTP() {
		controller.WithWelcomeSender(notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}))
		logger.Info("welcome email enabled")
	}

	cookieConfig := httputil.DefaultCookieConfig()
	cookieConfig.Secure = cfg.CookieSecure
	cookieConfig.Domain = cfg.CookieDomain

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		Controller:      controller,
		SessionCookie:   httputil.NewSessionCookie([]byte(cfg.SessionSecret), cfg.Registration.SessionIdleTTL, cookieConfig),
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.Registration.SessionStore == config.SessionStorePostgres {
		go purgeIdleSessions(ctx, controller, logger)
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

func newCodeSender(cfg config.GatewayConfig, logger *slog.Logger) onboarding.CodeSender {
	switch cfg.Provider {
	case config.GatewayTwilio:
		logger.Info("messaging gateway", "provider", "twilio")
		return notification.NewTwilioSender(notification.TwilioConfig{
			AccountSID:      cfg.TwilioAccountSID,
			AuthToken:       cfg.TwilioAuthToken,
			FromPhone:       cfg.TwilioFromPhone,
			MessageTemplate: cfg.MessageTemplate,
		})
	case config.GatewayLog:
		logger.Warn("messaging gateway is log-only, codes are not delivered")
		return notification.NewLogSender(logger)
	default:
		logger.Info("messaging gateway", "provider", "webhook")
		return notification.NewWebhookSender(notification.WebhookConfig{
			URL:             cfg.URL,
			APIKey:          cfg.APIKey,
			MessageTemplate: cfg.MessageTemplate,
			Timeout:         cfg.Timeout,
		})
	}
}

// purgeIdleSessions deletes abandoned postgres sessions. The memory store
// sweeps itself on write.
func purgeIdleSessions(ctx context.Context, controller *onboarding.Controller, logger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := controller.PurgeIdle(ctx)
			if err != nil {
				logger.Warn("failed to purge idle sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged idle registration sessions", "count", n)
			}
		}
	}
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
