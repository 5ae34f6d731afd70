package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/signup-gate/internal/config"
	"github.com/tendant/signup-gate/internal/http/features/registration"
	"github.com/tendant/signup-gate/internal/http/middleware"
	"github.com/tendant/signup-gate/internal/httputil"
	"github.com/tendant/signup-gate/pkg/onboarding"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Controller      *onboarding.Controller
	SessionCookie   *httputil.SessionCookie
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	registrationHandler := registration.NewHandler(cfg.Logger, cfg.Controller, cfg.SessionCookie)
	r.Route("/v1/register", func(r chi.Router) {
		registrationHandler.RegisterRoutes(r, rateLimiters["phone"], rateLimiters["verify"])
	})

	return r
}
