package httputil

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the registration session handle.
const SessionCookieName = "registration_session"

const sessionIssuer = "signup-gate"

// ErrInvalidSessionCookie is returned for a missing, tampered or expired cookie.
var ErrInvalidSessionCookie = errors.New("invalid session cookie")

// CookieConfig holds cookie configuration.
type CookieConfig struct {
	Domain   string
	Path     string
	Secure   bool // Set to true in production (HTTPS)
	SameSite http.SameSite
}

// DefaultCookieConfig returns default cookie configuration.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Path:     "/",
		Secure:   false, // Set to true in production
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionCookie signs the registration session id into an HttpOnly cookie.
// The cookie is only a handle; all state lives in the session store.
type SessionCookie struct {
	config CookieConfig
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionCookie creates a cookie codec. ttl bounds both the JWT expiry
// and the cookie MaxAge and is refreshed on every write.
func NewSessionCookie(secret []byte, ttl time.Duration, config CookieConfig) *SessionCookie {
	return &SessionCookie{config: config, secret: secret, ttl: ttl, now: time.Now}
}

// Read returns the session id carried by the request cookie.
func (c *SessionCookie) Read(r *http.Request) (uuid.UUID, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return uuid.Nil, ErrInvalidSessionCookie
	}

	token, err := jwt.ParseWithClaims(cookie.Value, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSessionCookie
		}
		return c.secret, nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, ErrInvalidSessionCookie
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrInvalidSessionCookie
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidSessionCookie
	}
	return id, nil
}

// Write sets a freshly signed cookie for id.
func (c *SessionCookie) Write(w http.ResponseWriter, id uuid.UUID) error {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   id.String(),
		Issuer:    sessionIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     c.config.Path,
		Domain:   c.config.Domain,
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: c.config.SameSite,
	})
	return nil
}

// Clear removes the cookie.
func (c *SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     c.config.Path,
		Domain:   c.config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: c.config.SameSite,
	})
}
