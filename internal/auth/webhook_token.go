package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/formlink/formlink/internal/config"
)

// ErrNoSecret is returned when webhook tokens are requested without a configured secret.
var ErrNoSecret = errors.New("webhook secret is not configured")

// WebhookClaims are the claims carried by a webhook token.
type WebhookClaims struct {
	jwt.RegisteredClaims
}

// WebhookTokenService issues and validates HS256 tokens that form
// platforms present when calling the submission webhook.
type WebhookTokenService struct {
	secret []byte
	issuer string
}

// NewWebhookTokenService creates a new WebhookTokenService.
func NewWebhookTokenService(cfg config.WebhookConfig) *WebhookTokenService {
	return &WebhookTokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}
}

// Enabled reports whether a secret is configured.
func (s *WebhookTokenService) Enabled() bool {
	return len(s.secret) > 0
}

// Issue mints a token for subject (typically the form ID). A zero ttl
// issues a token without expiry.
func (s *WebhookTokenService) Issue(subject string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", ErrNoSecret
	}

	now := time.Now()
	claims := WebhookClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   s.issuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign webhook token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a webhook token.
func (s *WebhookTokenService) Validate(tokenString string) (*WebhookClaims, error) {
	if !s.Enabled() {
		return nil, ErrNoSecret
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &WebhookClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	return claims, nil
}
