package registration

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/signup-gate/internal/http/middleware"
	"github.com/tendant/signup-gate/internal/httputil"
	"github.com/tendant/signup-gate/pkg/domain"
	"github.com/tendant/signup-gate/pkg/onboarding"
)

// ReferralParam is the query parameter carrying a referral token.
const ReferralParam = "ref"

// Handler exposes the registration flow over HTTP.
type Handler struct {
	logger     *slog.Logger
	controller *onboarding.Controller
	cookie     *httputil.SessionCookie
}

// NewHandler creates a new registration handler.
func NewHandler(logger *slog.Logger, controller *onboarding.Controller, cookie *httputil.SessionCookie) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		controller: controller,
		cookie:     cookie,
	}
}

// PhoneRequest represents a phone submission.
type PhoneRequest struct {
	Phone string `json:"phone"`
}

// CodeRequest represents a code submission.
type CodeRequest struct {
	Code string `json:"code"`
}

// ProfileRequest represents the final profile form.
type ProfileRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	TermsAccepted   bool   `json:"terms_accepted"`
}

// State returns the current stage and captures ?ref=.
// GET /
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	sid := h.begin(r)
	resp, err := h.controller.State(r.Context(), sid)
	h.respond(w, sid, resp, err)
}

// SubmitPhone handles phone submission.
// POST /phone
func (h *Handler) SubmitPhone(w http.ResponseWriter, r *http.Request) {
	var req PhoneRequest
	if !h.decode(w, r, &req) {
		return
	}
	sid := h.begin(r)
	resp, err := h.controller.SubmitPhone(r.Context(), sid, req.Phone)
	h.respond(w, sid, resp, err)
}

// SubmitCode handles verification code submission.
// POST /code
func (h *Handler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	sid := h.begin(r)
	resp, err := h.controller.SubmitCode(r.Context(), sid, req.Code)
	h.respond(w, sid, resp, err)
}

// ResendCode dispatches a new code for the live challenge.
// POST /resend
func (h *Handler) ResendCode(w http.ResponseWriter, r *http.Request) {
	sid := h.begin(r)
	resp, err := h.controller.ResendCode(r.Context(), sid)
	h.respond(w, sid, resp, err)
}

// Restart returns the session to phone entry.
// POST /restart
func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	sid := h.begin(r)
	resp, err := h.controller.Restart(r.Context(), sid)
	h.respond(w, sid, resp, err)
}

// SubmitProfile creates the account and clears the session cookie.
// POST /profile
func (h *Handler) SubmitProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	sid := h.begin(r)
	resp, err := h.controller.SubmitProfile(r.Context(), sid, onboarding.Profile{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		TermsAccepted:   req.TermsAccepted,
	})
	if err != nil {
		h.respond(w, sid, resp, err)
		return
	}
	// Registration is finished; the session no longer exists.
	h.cookie.Clear(w)
	httputil.JSON(w, http.StatusCreated, resp)
}

// begin resolves the session id from the cookie, starting a new session
// when it is missing or invalid, and captures a referral from the query.
func (h *Handler) begin(r *http.Request) uuid.UUID {
	sid, err := h.cookie.Read(r)
	if err != nil {
		sid = uuid.New()
	}

	if token := r.URL.Query().Get(ReferralParam); token != "" {
		if err := h.controller.CaptureReferral(r.Context(), sid, token); err != nil {
			h.logger.Error("failed to capture referral", "session_id", sid, "error", err)
		}
	}
	return sid
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	if middleware.HandleMaxBytesError(w, err) {
		return false
	}
	httputil.Error(w, http.StatusBadRequest, "invalid request body")
	return false
}

func (h *Handler) respond(w http.ResponseWriter, sid uuid.UUID, resp *onboarding.Response, err error) {
	if cerr := h.cookie.Write(w, sid); cerr != nil {
		h.logger.Error("failed to write session cookie", "error", cerr)
		httputil.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	status := http.StatusOK
	if err != nil {
		status = StatusFor(domain.KindOf(err))
	}
	httputil.JSON(w, status, resp)
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindExpired, domain.KindAttemptsExceeded, domain.KindNoActiveChallenge:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindDelivery:
		return http.StatusBadGateway
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
