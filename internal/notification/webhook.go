package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tendant/signup-gate/pkg/domain"
)

const defaultGatewayTimeout = 10 * time.Second

// WebhookConfig configures the HTTP messaging gateway.
type WebhookConfig struct {
	URL             string
	APIKey          string
	MessageTemplate string
	Timeout         time.Duration
}

// WebhookSender posts verification codes to a messaging gateway as JSON.
type WebhookSender struct {
	config     WebhookConfig
	httpClient *http.Client
}

type webhookRequest struct {
	Number  string `json:"number"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewWebhookSender creates a gateway client.
func NewWebhookSender(config WebhookConfig) *WebhookSender {
	if config.Timeout <= 0 {
		config.Timeout = defaultGatewayTimeout
	}
	return &WebhookSender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// SendCode delivers code to phone. Transport errors and non-2xx responses
// wrap domain.ErrDeliveryFailed. The code is never included in errors.
func (s *WebhookSender) SendCode(ctx context.Context, phone, code string) error {
	if s.config.URL == "" {
		return fmt.Errorf("%w: gateway URL not configured", domain.ErrDeliveryFailed)
	}

	raw, err := json.Marshal(webhookRequest{
		Number:  phone,
		Code:    code,
		Message: RenderMessage(s.config.MessageTemplate, code),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("x-api-key", s.config.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The body may echo the request, so only the status is reported.
		return fmt.Errorf("%w: gateway status=%d", domain.ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}
