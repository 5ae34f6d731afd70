package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func roundTrip(t *testing.T, write *SessionCookie, read *SessionCookie, id uuid.UUID) (uuid.UUID, error) {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := write.Write(rec, id); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return read.Read(req)
}

func TestSessionCookie_RoundTrip(t *testing.T) {
	c := NewSessionCookie(testSecret, 30*time.Minute, DefaultCookieConfig())
	id := uuid.New()

	got, err := roundTrip(t, c, c, id)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != id {
		t.Errorf("Read() = %s, want %s", got, id)
	}
}

func TestSessionCookie_Attributes(t *testing.T) {
	cfg := DefaultCookieConfig()
	cfg.Secure = true
	c := NewSessionCookie(testSecret, 30*time.Minute, cfg)

	rec := httptest.NewRecorder()
	_ = c.Write(rec, uuid.New())
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies", len(cookies))
	}
	ck := cookies[0]
	if ck.Name != SessionCookieName || !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteLaxMode || ck.MaxAge != 1800 {
		t.Errorf("cookie = %+v", ck)
	}
}

func TestSessionCookie_Rejects(t *testing.T) {
	c := NewSessionCookie(testSecret, 30*time.Minute, DefaultCookieConfig())

	t.Run("missing", func(t *testing.T) {
		if _, err := c.Read(httptest.NewRequest(http.MethodGet, "/", nil)); !errors.Is(err, ErrInvalidSessionCookie) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewSessionCookie([]byte("ffffffffffffffffffffffffffffffff"), 30*time.Minute, DefaultCookieConfig())
		if _, err := roundTrip(t, other, c, uuid.New()); !errors.Is(err, ErrInvalidSessionCookie) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		past := NewSessionCookie(testSecret, 30*time.Minute, DefaultCookieConfig())
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		if _, err := roundTrip(t, past, c, uuid.New()); !errors.Is(err, ErrInvalidSessionCookie) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not.a.jwt"})
		if _, err := c.Read(req); !errors.Is(err, ErrInvalidSessionCookie) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("non-uuid subject", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    sessionIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}
		signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: signed})
		if _, err := c.Read(req); !errors.Is(err, ErrInvalidSessionCookie) {
			t.Errorf("error = %v", err)
		}
	})
}

func TestSessionCookie_Clear(t *testing.T) {
	c := NewSessionCookie(testSecret, 30*time.Minute, DefaultCookieConfig())
	rec := httptest.NewRecorder()
	c.Clear(rec)
	ck := rec.Result().Cookies()[0]
	if ck.MaxAge != -1 || ck.Value != "" {
		t.Errorf("cookie = %+v", ck)
	}
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusTooManyRequests, "slow down")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %s", ct)
	}
	if body := rec.Body.String(); body != "{\"error\":\"slow down\"}\n" {
		t.Errorf("body = %q", body)
	}
}
