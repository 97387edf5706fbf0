package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/formlink/formlink/internal/auth"
)

// WebhookSubjectKey holds the "sub" claim of the caller's webhook token
const WebhookSubjectKey contextKey = "webhook_subject"

// WebhookAuth requires a valid webhook bearer token. It is a no-op when no
// webhook secret is configured.
func (m *Middleware) WebhookAuth(tokenSvc *auth.WebhookTokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !tokenSvc.Enabled() {
			m.log.Warn().Msg("webhook secret not configured, submissions are unauthenticated")
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
					tokenString = strings.TrimSpace(parts[1])
				}
			}

			if tokenString == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}

			claims, err := tokenSvc.Validate(tokenString)
			if err != nil {
				m.log.Debug().Err(err).Msg("webhook token validation failed")
				writeJSONError(w, http.StatusUnauthorized, "invalid_token", "The webhook token is invalid or expired")
				return
			}

			ctx := context.WithValue(r.Context(), WebhookSubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetWebhookSubject retrieves the authenticated webhook subject from context
func GetWebhookSubject(ctx context.Context) string {
	if sub, ok := ctx.Value(WebhookSubjectKey).(string); ok {
		return sub
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
