package email

import (
	"context"
	"fmt"

	"github.com/formlink/formlink/internal/config"
	"github.com/formlink/formlink/internal/logger"
)

// Sender is the interface that all email providers must implement.
type Sender interface {
	// Send sends an email to the specified recipient.
	Send(ctx context.Context, msg Message) error
	// Provider returns the provider name used in logs, metrics and delivery records.
	Provider() string
}

// Message represents an email message to be sent.
type Message struct {
	To       string // recipient email address
	Subject  string // email subject
	HTMLBody string // HTML email body
	TextBody string // plain-text fallback body
}

// NewSender builds the Sender selected by cfg.Provider.
func NewSender(ctx context.Context, cfg config.EmailConfig, log *logger.Logger) (Sender, error) {
	var (
		sender Sender
		err    error
	)

	switch cfg.Provider {
	case "gmail":
		if cfg.Gmail.RefreshToken != "" {
			sender, err = NewGmailSenderWithToken(ctx, cfg.Gmail.ClientID, cfg.Gmail.ClientSecret, cfg.Gmail.RefreshToken, cfg.SenderAddress, cfg.SenderName)
		} else {
			sender, err = NewGmailSender(ctx, GmailConfig{
				CredentialsJSON: cfg.Gmail.CredentialsJSON,
				SenderAddress:   cfg.SenderAddress,
				SenderName:      cfg.SenderName,
			})
		}
	case "resend":
		sender, err = NewResendSender(ResendConfig{
			APIKey:        cfg.Resend.APIKey,
			SenderAddress: cfg.SenderAddress,
			SenderName:    cfg.SenderName,
		})
	case "smtp":
		sender, err = NewSMTPSender(SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
			SenderAddress:      cfg.SenderAddress,
			SenderName:         cfg.SenderName,
		})
	case "log":
		sender = NewLogSender(log)
	default:
		return nil, fmt.Errorf("email: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RedirectTo != "" {
		log.Warn().Str("redirect_to", cfg.RedirectTo).Msg("all results emails are redirected")
		sender = NewRedirectSender(sender, cfg.RedirectTo)
	}

	return sender, nil
}

// formatFrom renders the From header value.
func formatFrom(address, name string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}
