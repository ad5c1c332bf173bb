package channels

import (
	"context"
	"fmt"

	"github.com/lupppig/notifyq/internal/domain"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSMS sends text messages through the Twilio REST API.
type TwilioSMS struct {
	api  messageCreator
	from string
}

func NewTwilioSMS(cfg TwilioConfig) *TwilioSMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSMS{api: client.Api, from: cfg.From}
}

func (s *TwilioSMS) Send(ctx context.Context, target string, content domain.Content) (string, error) {
	if target == "" {
		return "", fmt.Errorf("empty phone number")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(target)
	params.SetFrom(s.from)
	params.SetBody(content.Body)

	type result struct {
		msg *twilioApi.ApiV2010Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := s.api.CreateMessage(params)
		done <- result{msg, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("twilio create message: %w", r.err)
		}
		if r.msg == nil || r.msg.Sid == nil {
			return "", fmt.Errorf("twilio create message: response without sid")
		}
		return *r.msg.Sid, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
