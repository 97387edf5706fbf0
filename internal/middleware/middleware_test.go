package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formlink/formlink/internal/auth"
	"github.com/formlink/formlink/internal/config"
	"github.com/formlink/formlink/internal/logger"
)

type fakeCounter struct {
	counts  map[string]int64
	ttls    map[string]time.Duration
	incrErr error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(_ context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounter) Expire(_ context.Context, key string, ttl time.Duration) error {
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCounter) TTL(_ context.Context, key string) (time.Duration, error) {
	return f.ttls[key], nil
}

func rateLimitedConfig() *config.Config {
	return &config.Config{Security: config.SecurityConfig{
		RateLimiting: config.RateLimitingConfig{Enabled: true, Limit: 2, Window: time.Minute},
	}}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimit(t *testing.T) {
	counter := newFakeCounter()
	cfg := rateLimitedConfig()
	cfg.Security.RateLimiting.TrustProxy = true
	mw := New(counter, logger.Nop(), cfg)
	h := mw.RateLimit(RateLimitConfig{Limit: 2, Window: time.Minute, KeyFn: mw.IPKey})(okHandler)

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "rate_limit_exceeded")
	assert.Equal(t, time.Minute, counter.ttls["ratelimit:203.0.113.7"])
}

func TestRateLimitFailsOpen(t *testing.T) {
	counter := newFakeCounter()
	counter.incrErr = errors.New("redis down")
	mw := New(counter, logger.Nop(), rateLimitedConfig())
	h := mw.RateLimit(RateLimitConfig{Limit: 1, Window: time.Minute, KeyFn: mw.IPKey})(okHandler)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitWithoutCounter(t *testing.T) {
	mw := New(nil, logger.Nop(), rateLimitedConfig())
	h := mw.RateLimit(RateLimitConfig{Limit: 0, Window: time.Minute, KeyFn: mw.IPKey})(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitSharesBucketAcrossPorts(t *testing.T) {
	counter := newFakeCounter()
	mw := New(counter, logger.Nop(), rateLimitedConfig())
	h := mw.RateLimit(RateLimitConfig{Limit: 2, Window: time.Minute, KeyFn: mw.IPKey})(okHandler)

	rejected := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", nil)
		req.RemoteAddr = fmt.Sprintf("203.0.113.7:%d", 40000+i)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			rejected++
		}
	}

	assert.Equal(t, 8, rejected)
	assert.Equal(t, int64(10), counter.counts["ratelimit:203.0.113.7"])
}

func TestIPKey(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		forwarded  string
		want       string
	}{
		{name: "strips port", remoteAddr: "203.0.113.7:40000", want: "203.0.113.7"},
		{name: "ipv6", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "no port", remoteAddr: "203.0.113.7", want: "203.0.113.7"},
		{name: "forwarded ignored by default", remoteAddr: "10.0.0.1:5000", forwarded: "198.51.100.9", want: "10.0.0.1"},
		{name: "forwarded from trusted proxy", trustProxy: true, remoteAddr: "10.0.0.1:5000", forwarded: "198.51.100.9, 10.0.0.1", want: "198.51.100.9"},
		{name: "trusted proxy without header", trustProxy: true, remoteAddr: "10.0.0.1:5000", want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := rateLimitedConfig()
			cfg.Security.RateLimiting.TrustProxy = tt.trustProxy
			mw := New(nil, logger.Nop(), cfg)

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, mw.IPKey(req))
		})
	}
}

func TestWebhookAuth(t *testing.T) {
	tokenSvc := auth.NewWebhookTokenService(config.WebhookConfig{Secret: "s3cret", Issuer: "formlink"})
	token, err := tokenSvc.Issue("form-1", time.Hour)
	require.NoError(t, err)

	mw := New(nil, logger.Nop(), &config.Config{})

	var subject string
	h := mw.WebhookAuth(tokenSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = GetWebhookSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, want: http.StatusOK},
		{name: "case-insensitive scheme", header: "bearer " + token, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Equal(t, "form-1", subject)
}

func TestWebhookAuthDisabledWithoutSecret(t *testing.T) {
	mw := New(nil, logger.Nop(), &config.Config{})
	h := mw.WebhookAuth(auth.NewWebhookTokenService(config.WebhookConfig{}))(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	mw := New(nil, logger.Nop(), &config.Config{})

	var seen string
	h := mw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "req-42", seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRecover(t *testing.T) {
	mw := New(nil, logger.Nop(), &config.Config{})
	h := mw.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}
