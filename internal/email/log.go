package email

import (
	"context"
	"fmt"

	"github.com/formlink/formlink/internal/logger"
)

// LogSender writes messages to the logger instead of sending them.
type LogSender struct {
	log *logger.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log.WithComponent("email_log")}
}

// Provider implements Sender.
func (s *LogSender) Provider() string { return "log" }

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("html_body", msg.HTMLBody).
		Msg("email not sent (log provider)")
	return nil
}

// RedirectSender delivers every message to a fixed address, keeping the
// original recipient in the subject.
type RedirectSender struct {
	next Sender
	to   string
}

// NewRedirectSender wraps next.
func NewRedirectSender(next Sender, to string) *RedirectSender {
	return &RedirectSender{next: next, to: to}
}

// Provider implements Sender.
func (s *RedirectSender) Provider() string { return s.next.Provider() }

// Send implements Sender.
func (s *RedirectSender) Send(ctx context.Context, msg Message) error {
	msg.Subject = fmt.Sprintf("[REDIRECT] %s (original: %s)", msg.Subject, msg.To)
	msg.To = s.to
	return s.next.Send(ctx, msg)
}
