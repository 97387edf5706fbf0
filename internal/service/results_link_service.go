package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formlink/formlink/internal/config"
	"github.com/formlink/formlink/internal/email"
	"github.com/formlink/formlink/internal/logger"
	"github.com/formlink/formlink/internal/metrics"
	"github.com/formlink/formlink/internal/model"
)

// Results link errors
var (
	ErrMissingEmail        = errors.New("submission has no email address")
	ErrInvalidEmail        = errors.New("submission email address is invalid")
	ErrInvalidBaseURL      = config.ErrInvalidBaseURL
	ErrDuplicateSubmission = errors.New("results link was already sent to this address recently")
	ErrSendFailed          = errors.New("failed to send results email")
)

const (
	sentRedisPrefix = "results_link_sent:"
	// claimTTL bounds how long an in-flight send holds the recipient's key.
	claimTTL = 2 * time.Minute
)

// DeliveryStore persists delivery records.
type DeliveryStore interface {
	Create(ctx context.Context, d *model.Delivery) error
}

// DedupeStore remembers recently mailed recipients. Implemented by database.Redis.
type DedupeStore interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ResultsLinkService turns form submissions into results link emails.
type ResultsLinkService struct {
	sender       email.Sender
	store        DeliveryStore
	dedupe       DedupeStore
	dashboard    config.DashboardConfig
	dedupeWindow time.Duration
	log          *logger.Logger
	now          func() time.Time
}

// NewResultsLinkService creates a new ResultsLinkService.
// store and dedupe are optional; pass nil to skip recording or duplicate suppression.
func NewResultsLinkService(
	sender email.Sender,
	store DeliveryStore,
	dedupe DedupeStore,
	cfg *config.Config,
	log *logger.Logger,
) *ResultsLinkService {
	return &ResultsLinkService{
		sender:       sender,
		store:        store,
		dedupe:       dedupe,
		dashboard:    cfg.Dashboard,
		dedupeWindow: cfg.Submission.DedupeWindow,
		log:          log.WithComponent("results_link"),
		now:          time.Now,
	}
}

// ExtractRecipient returns the respondent's address and optional name.
func (s *ResultsLinkService) ExtractRecipient(sub *model.Submission) (string, string, error) {
	raw := sub.Value(s.dashboard.EmailField)
	if raw == "" {
		return "", "", ErrMissingEmail
	}

	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	// A quoted local part such as "a b"@c.co comes back unquoted and would
	// not survive the To header or the link.
	if _, err := mail.ParseAddress(addr.Address); err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}

	var name string
	if s.dashboard.NameField != "" {
		name = sub.Value(s.dashboard.NameField)
	}

	return addr.Address, name, nil
}

// BuildResultsURL returns "<base>/?email=<escaped address>".
func BuildResultsURL(base, address string) (string, error) {
	if _, err := config.ParseBaseURL(base); err != nil {
		return "", err
	}

	return strings.TrimRight(base, "/") + "/?email=" + escapeQueryValue(address), nil
}

// NormalizeAddress trims and lowercases an address, the form the dashboard
// looks responses up by.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// escapeQueryValue percent-encodes s for a query value, writing spaces as %20.
func escapeQueryValue(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// ComposeMessage renders the results link email.
func (s *ResultsLinkService) ComposeMessage(address, name, resultsURL string) (email.Message, error) {
	params := email.ResultsLinkParams{
		Subject:     s.dashboard.Subject,
		Name:        name,
		SurveyName:  s.dashboard.SurveyName,
		ButtonLabel: s.dashboard.ButtonLabel,
		ResultsURL:  resultsURL,
	}

	html, err := email.ResultsLinkHTML(params)
	if err != nil {
		return email.Message{}, fmt.Errorf("failed to render HTML body: %w", err)
	}
	text, err := email.ResultsLinkText(params)
	if err != nil {
		return email.Message{}, fmt.Errorf("failed to render text body: %w", err)
	}

	return email.Message{
		To:       address,
		Subject:  s.dashboard.Subject,
		HTMLBody: html,
		TextBody: text,
	}, nil
}

// Process mails the results link for one submission. Send failures are
// logged, recorded and returned wrapped in ErrSendFailed; they are not retried.
func (s *ResultsLinkService) Process(ctx context.Context, sub *model.Submission) (*model.Delivery, error) {
	log := s.log.WithSubmission(sub.ID, sub.FormID)

	address, name, err := s.ExtractRecipient(sub)
	if err != nil {
		log.Warn().Err(err).Msg("submission rejected")
		metrics.Submissions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	linkAddress := address
	if s.dashboard.NormalizeEmail {
		linkAddress = NormalizeAddress(address)
	}

	resultsURL, err := BuildResultsURL(s.dashboard.BaseURL, linkAddress)
	if err != nil {
		return nil, err
	}

	delivery := &model.Delivery{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		FormID:       optional(sub.FormID),
		Recipient:    address,
		Name:         optional(name),
		ResultsURL:   resultsURL,
		Provider:     s.sender.Provider(),
		CreatedAt:    s.now().UTC(),
	}

	dupKey := sentRedisPrefix + hashAddress(address)
	claimed := false
	if s.dedupeEnabled() {
		ok, err := s.dedupe.SetNX(ctx, dupKey, "pending:"+delivery.ID, claimTTL)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("duplicate check failed, sending anyway")
		case !ok:
			delivery.Status = model.DeliveryStatusDuplicate
			s.finish(ctx, log, delivery, nil)
			return delivery, ErrDuplicateSubmission
		default:
			claimed = true
		}
	}

	msg, err := s.ComposeMessage(address, name, resultsURL)
	if err != nil {
		s.release(ctx, log, dupKey, claimed)
		return nil, err
	}

	sendErr := s.sender.Send(ctx, msg)
	metrics.ObserveSend(delivery.Provider, sendErr)
	if sendErr != nil {
		s.release(ctx, log, dupKey, claimed)
		delivery.Status = model.DeliveryStatusFailed
		delivery.Error = optional(sendErr.Error())
		s.finish(ctx, log, delivery, sendErr)
		return delivery, fmt.Errorf("%w: %w", ErrSendFailed, sendErr)
	}

	sentAt := s.now().UTC()
	delivery.SentAt = &sentAt
	delivery.Status = model.DeliveryStatusSent

	if s.dedupeEnabled() {
		if err := s.dedupe.SetWithTTL(ctx, dupKey, delivery.ID, s.dedupeWindow); err != nil {
			log.Warn().Err(err).Msg("failed to remember sent recipient")
		}
	}

	s.finish(ctx, log, delivery, nil)
	return delivery, nil
}

// release drops a claim so a later submission for the same address can send.
// The send context may be cancelled by now, so a detached context is used.
func (s *ResultsLinkService) release(ctx context.Context, log *logger.Logger, key string, claimed bool) {
	if !claimed {
		return
	}
	if err := s.dedupe.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.Warn().Err(err).Msg("failed to release duplicate claim")
	}
}

func (s *ResultsLinkService) dedupeEnabled() bool {
	return s.dedupe != nil && s.dedupeWindow > 0
}

// finish records and logs the delivery outcome. A failed insert is logged
// only; the email has already been handled.
func (s *ResultsLinkService) finish(ctx context.Context, log *logger.Logger, d *model.Delivery, sendErr error) {
	metrics.Submissions.WithLabelValues(string(d.Status)).Inc()

	if s.store != nil {
		if err := s.store.Create(ctx, d); err != nil {
			log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to record delivery")
		}
	}

	log.Delivery(d.ID, d.Recipient, d.Provider, string(d.Status), sendErr)
}

// hashAddress keys dedupe entries without storing addresses in Redis.
func hashAddress(address string) string {
	h := sha256.Sum256([]byte(NormalizeAddress(address)))
	return hex.EncodeToString(h[:])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
