package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/signup-gate/pkg/auth"
	"github.com/tendant/signup-gate/pkg/domain"
)

// SessionStore persists registration sessions with mutual exclusion per id.
type SessionStore interface {
	// Load returns domain.ErrSessionNotFound for unknown or idle sessions.
	Load(ctx context.Context, id uuid.UUID) (*domain.RegistrationSession, error)
	// Update applies fn under the session's lock, creating the session when
	// absent. When fn returns an error nothing is stored. Writes made through
	// the ctx passed to fn commit or roll back with the session.
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*domain.RegistrationSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	PurgeIdle(ctx context.Context) (int, error)
}

// UpdateFunc mutates a locked session.
type UpdateFunc = func(ctx context.Context, s *domain.RegistrationSession) error

// AccountRepository is the account store used by the flow. Lookups return
// domain.ErrAccountNotFound when nothing matches.
type AccountRepository interface {
	AccountFinder
	FindByPhone(ctx context.Context, phone string) (*domain.Account, error)
	Create(ctx context.Context, acct domain.NewAccount) (*domain.Account, error)
}

// CodeSender delivers a verification code to a phone number. Any failure
// should wrap domain.ErrDeliveryFailed.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// Entitlements supplies the trial length granted to new accounts.
type Entitlements interface {
	TrialDurationDays(ctx context.Context) (int, error)
}

// StaticEntitlements is a fixed trial length.
type StaticEntitlements int

// TrialDurationDays returns the fixed trial length.
func (s StaticEntitlements) TrialDurationDays(context.Context) (int, error) {
	return int(s), nil
}

// WelcomeSender notifies a newly created account. Optional.
type WelcomeSender interface {
	SendWelcomeEmail(to, username string, trialDays int) error
}

// CodeGenerator returns a fresh verification code.
type CodeGenerator func() (string, error)

// MessageType tells the caller how to render a response message.
type MessageType string

const (
	MessageSuccess MessageType = "success"
	MessageError   MessageType = "error"
	MessageInfo    MessageType = "info"
)

const unavailableMessage = "registration is temporarily unavailable, try again later"

// Response is the result of one registration action.
type Response struct {
	Stage             domain.Stage     `json:"stage"`
	Message           string           `json:"message"`
	MessageType       MessageType      `json:"message_type"`
	RemainingAttempts *int             `json:"remaining_attempts,omitempty"`
	ErrorKind         domain.ErrorKind `json:"error_kind,omitempty"`
	AccountID         *uuid.UUID       `json:"account_id,omitempty"`
	TrialDurationDays *int             `json:"trial_duration_days,omitempty"`
}

// ControllerConfig configures the registration flow.
type ControllerConfig struct {
	Policy               Policy
	SendTimeout          time.Duration
	BlockDisposableEmail bool
}

// Controller drives the registration flow for one request at a time. It does
// the I/O around the transition core and never calls the gateway while a
// session is locked.
type Controller struct {
	config       ControllerConfig
	store        SessionStore
	accounts     AccountRepository
	sender       CodeSender
	resolver     *Resolver
	entitlements Entitlements
	welcome      WelcomeSender
	generate     CodeGenerator
	logger       *slog.Logger
	now          func() time.Time
}

// NewController creates a registration controller.
func NewController(
	config ControllerConfig,
	store SessionStore,
	accounts AccountRepository,
	sender CodeSender,
	resolver *Resolver,
	entitlements Entitlements,
	logger *slog.Logger,
) *Controller {
	config.Policy = config.Policy.withDefaults()
	if config.SendTimeout <= 0 {
		config.SendTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		config:       config,
		store:        store,
		accounts:     accounts,
		sender:       sender,
		resolver:     resolver,
		entitlements: entitlements,
		generate:     auth.GenerateCode,
		logger:       logger,
		now:          time.Now,
	}
}

// WithWelcomeSender sets the sender used after an account is created.
func (c *Controller) WithWelcomeSender(w WelcomeSender) *Controller {
	c.welcome = w
	return c
}

// WithCodeGenerator replaces the code source.
func (c *Controller) WithCodeGenerator(g CodeGenerator) *Controller {
	c.generate = g
	return c
}

// WithClock replaces the time source.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// State returns the session's current stage.
func (c *Controller) State(ctx context.Context, sessionID uuid.UUID) (*Response, error) {
	s, err := c.load(ctx, sessionID)
	if err != nil {
		return c.failure(domain.StageAwaitingPhone, err), err
	}
	return &Response{Stage: s.Stage, Message: stageMessage(s.Stage), MessageType: MessageInfo}, nil
}

// CaptureReferral records token on the session unless one is already set.
func (c *Controller) CaptureReferral(ctx context.Context, sessionID uuid.UUID, token string) error {
	if token == "" {
		return nil
	}
	_, err := c.store.Update(ctx, sessionID, func(_ context.Context, s *domain.RegistrationSession) error {
		CaptureReferral(s, token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to capture referral: %w", err)
	}
	return nil
}

// SubmitPhone validates phone, dispatches a code and moves the session to
// AwaitingCode.
func (c *Controller) SubmitPhone(ctx context.Context, sessionID uuid.UUID, rawPhone string) (*Response, error) {
	s, err := c.load(ctx, sessionID)
	if err != nil {
		return c.failure(domain.StageAwaitingPhone, err), err
	}

	phone, err := auth.ValidatePhone(rawPhone)
	if err != nil {
		return c.failure(s.Stage, err), err
	}
	if s.Stage != domain.StageAwaitingPhone {
		return c.failure(s.Stage, domain.ErrStageMismatch), domain.ErrStageMismatch
	}

	if _, err := c.accounts.FindByPhone(ctx, phone); err == nil {
		return c.failure(s.Stage, domain.ErrPhoneAlreadyRegistered), domain.ErrPhoneAlreadyRegistered
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		err = fmt.Errorf("failed to check phone: %w", err)
		return c.failure(s.Stage, err), err
	}

	code, err := c.dispatch(ctx, phone)
	if err != nil {
		return c.failure(s.Stage, err), err
	}

	s, err = c.store.Update(ctx, sessionID, func(_ context.Context, s *domain.RegistrationSession) error {
		return c.config.Policy.IssueChallenge(s, phone, auth.HashCode(code), c.now())
	})
	if err != nil {
		current := domain.StageAwaitingPhone
		if errors.Is(err, domain.ErrStageMismatch) {
			current = c.stageOf(ctx, sessionID)
		}
		return c.failure(current, err), err
	}

	c.logger.Info("verification code issued", "session_id", sessionID, "phone", auth.MaskPhone(phone))
	return &Response{
		Stage:       s.Stage,
		Message:     "verification code sent",
		MessageType: MessageSuccess,
	}, nil
}

// SubmitCode checks a submitted code against the live challenge.
func (c *Controller) SubmitCode(ctx context.Context, sessionID uuid.UUID, code string) (*Response, error) {
	var verr error
	s, err := c.store.Update(ctx, sessionID, func(_ context.Context, s *domain.RegistrationSession) error {
		verr = c.config.Policy.VerifyCode(s, code, c.now())
		return nil
	})
	if err != nil {
		return c.failure(domain.StageAwaitingPhone, err), err
	}

	if verr != nil {
		c.logger.Info("code verification failed", "session_id", sessionID, "reason", domain.KindOf(verr))
		resp := c.failure(s.Stage, verr)
		var incorrect *domain.IncorrectCodeError
		if errors.As(verr, &incorrect) {
			remaining := incorrect.Remaining
			resp.RemainingAttempts = &remaining
		}
		return resp, verr
	}

	return &Response{
		Stage:       s.Stage,
		Message:     "phone number verified",
		MessageType: MessageSuccess,
	}, nil
}

// ResendCode dispatches a new code for the live challenge. On delivery
// failure the previous challenge stays in place.
func (c *Controller) ResendCode(ctx context.Context, sessionID uuid.UUID) (*Response, error) {
	s, err := c.load(ctx, sessionID)
	if err != nil {
		return c.failure(domain.StageAwaitingPhone, err), err
	}
	if s.Stage != domain.StageAwaitingCode || s.Challenge == nil {
		return c.failure(s.Stage, domain.ErrNoActiveChallenge), domain.ErrNoActiveChallenge
	}
	challengeID := s.Challenge.ID
	phone := s.Challenge.Phone

	code, err := c.dispatch(ctx, phone)
	if err != nil {
		return c.failure(s.Stage, err), err
	}

	s, err = c.store.Update(ctx, sessionID, func(_ context.Context, s *domain.RegistrationSession) error {
		return c.config.Policy.ReissueChallenge(s, challengeID, auth.HashCode(code), c.now())
	})
	if err != nil {
		current := c.stageOf(ctx, sessionID)
		return c.failure(current, err), err
	}

	c.logger.Info("verification code resent", "session_id", sessionID, "phone", auth.MaskPhone(phone))
	return &Response{
		Stage:       s.Stage,
		Message:     "a new verification code was sent",
		MessageType: MessageSuccess,
	}, nil
}

// Restart returns the session to AwaitingPhone. The referral is kept.
func (c *Controller) Restart(ctx context.Context, sessionID uuid.UUID) (*Response, error) {
	s, err := c.store.Update(ctx, sessionID, func(_ context.Context, s *domain.RegistrationSession) error {
		Restart(s)
		return nil
	})
	if err != nil {
		return c.failure(domain.StageAwaitingPhone, err), err
	}
	return &Response{Stage: s.Stage, Message: stageMessage(s.Stage), MessageType: MessageInfo}, nil
}

// SubmitProfile validates the profile and creates the account bound to the
// verified phone and the resolved referrer. On failure the session stays in
// AwaitingProfile.
func (c *Controller) SubmitProfile(ctx context.Context, sessionID uuid.UUID, profile Profile) (*Response, error) {
	s, err := c.load(ctx, sessionID)
	if err != nil {
		return c.failure(domain.StageAwaitingPhone, err), err
	}
	if _, err := VerifiedPhone(s); err != nil {
		return c.failure(s.Stage, err), err
	}

	profile = profile.Normalize()
	if err := ValidateProfile(profile, c.config.BlockDisposableEmail); err != nil {
		return c.failure(s.Stage, err), err
	}

	referral, err := c.resolver.Resolve(ctx, s.ReferralToken)
	if err != nil {
		return c.failure(s.Stage, err), err
	}

	trialDays, err := c.entitlements.TrialDurationDays(ctx)
	if err != nil {
		err = fmt.Errorf("failed to read trial duration: %w", err)
		return c.failure(s.Stage, err), err
	}

	var created *domain.Account
	_, err = c.store.Update(ctx, sessionID, func(ctx context.Context, s *domain.RegistrationSession) error {
		phone, err := VerifiedPhone(s)
		if err != nil {
			return err
		}
		created, err = c.accounts.Create(ctx, domain.NewAccount{
			Username:          profile.Username,
			Email:             profile.Email,
			Phone:             phone,
			Password:          profile.Password,
			Referral:          referral,
			TrialDurationDays: trialDays,
		})
		if err != nil {
			return err
		}
		Complete(s)
		return nil
	})
	if err != nil {
		current := c.stageOf(ctx, sessionID)
		return c.failure(current, err), err
	}

	c.logger.Info("account created",
		"session_id", sessionID,
		"account_id", created.ID,
		"referrer_id", referral.ReferrerID,
		"referral_default", referral.IsDefault,
	)

	if err := c.store.Delete(ctx, sessionID); err != nil {
		c.logger.Warn("failed to delete completed session", "session_id", sessionID, "error", err)
	}

	if c.welcome != nil {
		if err := c.welcome.SendWelcomeEmail(created.Email, created.Username, trialDays); err != nil {
			c.logger.Warn("failed to send welcome email", "account_id", created.ID, "error", err)
		}
	}

	id := created.ID
	return &Response{
		Stage:             domain.StageAwaitingPhone,
		Message:           fmt.Sprintf("account created, you have %d days of free trial", trialDays),
		MessageType:       MessageSuccess,
		AccountID:         &id,
		TrialDurationDays: &trialDays,
	}, nil
}

// PurgeIdle removes idle sessions from the store.
func (c *Controller) PurgeIdle(ctx context.Context) (int, error) {
	return c.store.PurgeIdle(ctx)
}

// load returns the session, or a fresh unsaved one when none is stored.
func (c *Controller) load(ctx context.Context, id uuid.UUID) (*domain.RegistrationSession, error) {
	s, err := c.store.Load(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.NewRegistrationSession(id, c.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return s, nil
}

func (c *Controller) stageOf(ctx context.Context, id uuid.UUID) domain.Stage {
	s, err := c.load(ctx, id)
	if err != nil {
		return domain.StageAwaitingPhone
	}
	return s.Stage
}

// dispatch generates a code and delivers it without holding any session lock.
func (c *Controller) dispatch(ctx context.Context, phone string) (string, error) {
	code, err := c.generate()
	if err != nil {
		return "", err
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.config.SendTimeout)
	defer cancel()

	if err := c.sender.SendCode(sendCtx, phone, code); err != nil {
		c.logger.Error("failed to deliver verification code", "phone", auth.MaskPhone(phone), "error", err)
		if !errors.Is(err, domain.ErrDeliveryFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
		}
		return "", err
	}
	return code, nil
}

func (c *Controller) failure(stage domain.Stage, err error) *Response {
	kind := domain.KindOf(err)
	msg := domain.PublicMessage(err)
	switch kind {
	case domain.KindPersistence:
		c.logger.Error("registration failed", "error", err)
		msg = unavailableMessage
	case domain.KindDelivery:
		msg += ", try again shortly"
	}
	return &Response{
		Stage:       stage,
		Message:     msg,
		MessageType: MessageError,
		ErrorKind:   kind,
	}
}

func stageMessage(stage domain.Stage) string {
	switch stage {
	case domain.StageAwaitingCode:
		return "enter the verification code sent to your phone"
	case domain.StageAwaitingProfile:
		return "phone verified, complete your profile"
	default:
		return "enter your phone number"
	}
}
