package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ResendConfig holds the configuration for the Resend email sender.
type ResendConfig struct {
	APIKey        string
	SenderAddress string
	SenderName    string
	// BaseURL overrides the Resend API endpoint. Used in tests.
	BaseURL string
}

// ResendSender implements Sender using the Resend HTTP API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a new ResendSender.
func NewResendSender(cfg ResendConfig) (*ResendSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("resend: API key is required")
	}
	if cfg.SenderAddress == "" {
		return nil, fmt.Errorf("resend: sender address is required")
	}

	client := resend.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("resend: invalid base URL: %w", err)
		}
		client.BaseURL = u
	}

	return &ResendSender{
		client: client,
		from:   formatFrom(cfg.SenderAddress, cfg.SenderName),
	}, nil
}

// Provider implements Sender.
func (s *ResendSender) Provider() string { return "resend" }

// Send sends an email via Resend.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTMLBody,
		Text:    msg.TextBody,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}

	return nil
}
