package notification

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/tendant/signup-gate/pkg/domain"
)

// TwilioConfig configures SMS delivery through Twilio.
type TwilioConfig struct {
	AccountSID      string
	AuthToken       string
	FromPhone       string
	MessageTemplate string
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends verification codes as SMS.
type TwilioSender struct {
	api  messageCreator
	from string
	tmpl string
}

// NewTwilioSender creates a Twilio-backed sender.
func NewTwilioSender(config TwilioConfig) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})
	return &TwilioSender{api: client.Api, from: config.FromPhone, tmpl: config.MessageTemplate}
}

// SendCode sends code to the E.164 form of phone. The Twilio client has no
// context support, so the call is abandoned (not cancelled) when ctx ends.
func (s *TwilioSender) SendCode(ctx context.Context, phone, code string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("+" + phone)
	params.SetFrom(s.from)
	params.SetBody(RenderMessage(s.tmpl, code))

	done := make(chan error, 1)
	go func() {
		_, err := s.api.CreateMessage(params)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: twilio: %v", domain.ErrDeliveryFailed, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: twilio: %v", domain.ErrDeliveryFailed, ctx.Err())
	}
}
