package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/tendant/signup-gate/pkg/domain"
)

func TestRenderMessage(t *testing.T) {
	tests := []struct {
		tmpl string
		want string
	}{
		{tmpl: "Code: #code#", want: "Code: 048213"},
		{tmpl: "#code# is your code (#code#)", want: "048213 is your code (048213)"},
		{tmpl: "Your code", want: "Your code 048213"},
		{tmpl: "", want: "Your verification code is: 048213. It expires in 10 minutes."},
	}
	for _, tt := range tests {
		if got := RenderMessage(tt.tmpl, "048213"); got != tt.want {
			t.Errorf("RenderMessage(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestWebhookSender_Success(t *testing.T) {
	var got webhookRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		apiKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookSender(WebhookConfig{URL: srv.URL, APIKey: "k", MessageTemplate: "code #code#"})
	if err := s.SendCode(context.Background(), "5511999999999", "048213"); err != nil {
		t.Fatalf("SendCode() error = %v", err)
	}
	if got.Number != "5511999999999" || got.Code != "048213" || got.Message != "code 048213" {
		t.Errorf("request = %+v", got)
	}
	if apiKey != "k" {
		t.Errorf("x-api-key = %q", apiKey)
	}
}

func TestWebhookSender_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "redirect-like", status: http.StatusNotModified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				echo, _ := io.ReadAll(r.Body)
				w.WriteHeader(tt.status)
				_, _ = w.Write(echo)
			}))
			defer srv.Close()

			err := NewWebhookSender(WebhookConfig{URL: srv.URL}).SendCode(context.Background(), "5511999999999", "048213")
			if !errors.Is(err, domain.ErrDeliveryFailed) {
				t.Fatalf("error = %v, want ErrDeliveryFailed", err)
			}
			if strings.Contains(err.Error(), "048213") {
				t.Error("error should not contain the code")
			}
		})
	}
}

func TestWebhookSender_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	s := NewWebhookSender(WebhookConfig{URL: srv.URL, Timeout: 50 * time.Millisecond})
	if err := s.SendCode(context.Background(), "5511999999999", "048213"); !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Errorf("error = %v, want ErrDeliveryFailed", err)
	}
}

func TestWebhookSender_Unconfigured(t *testing.T) {
	if err := NewWebhookSender(WebhookConfig{}).SendCode(context.Background(), "5511999999999", "1"); !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Errorf("error = %v", err)
	}
}

type fakeMessageCreator struct {
	params *twilioApi.CreateMessageParams
	err    error
	delay  time.Duration
}

func (f *fakeMessageCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	time.Sleep(f.delay)
	f.params = params
	return &twilioApi.ApiV2010Message{}, f.err
}

func TestTwilioSender(t *testing.T) {
	fake := &fakeMessageCreator{}
	s := &TwilioSender{api: fake, from: "+15550000000", tmpl: "code #code#"}

	if err := s.SendCode(context.Background(), "5511999999999", "048213"); err != nil {
		t.Fatalf("SendCode() error = %v", err)
	}
	if *fake.params.To != "+5511999999999" || *fake.params.From != "+15550000000" || *fake.params.Body != "code 048213" {
		t.Errorf("params to=%s from=%s body=%s", *fake.params.To, *fake.params.From, *fake.params.Body)
	}

	fake.err = errors.New("21211 invalid To")
	if err := s.SendCode(context.Background(), "5511999999999", "048213"); !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Errorf("error = %v, want ErrDeliveryFailed", err)
	}
}

func TestTwilioSender_ContextDeadline(t *testing.T) {
	s := &TwilioSender{api: &fakeMessageCreator{delay: time.Second}, from: "+1"}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.SendCode(ctx, "5511999999999", "048213"); !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Errorf("error = %v, want ErrDeliveryFailed", err)
	}
}

func TestEmailService_SendWelcomeEmail(t *testing.T) {
	var addr, from string
	var msg []byte
	s := NewEmailService(EmailConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com", FromName: "Signup"})
	s.sendMail = func(a string, _ smtp.Auth, f string, to []string, m []byte) error {
		addr, from, msg = a, f, m
		return nil
	}

	if err := s.SendWelcomeEmail("joao@example.com", "<joao>", 7); err != nil {
		t.Fatalf("SendWelcomeEmail() error = %v", err)
	}
	if addr != "smtp.example.com:587" || from != "noreply@example.com" {
		t.Errorf("addr=%s from=%s", addr, from)
	}
	body := string(msg)
	if !strings.Contains(body, "7 days of free trial") {
		t.Error("body should state the trial length")
	}
	if !strings.Contains(body, "&lt;joao&gt;") {
		t.Error("username should be escaped")
	}
	if !strings.Contains(body, "From: Signup <noreply@example.com>") {
		t.Error("missing From header")
	}
}
