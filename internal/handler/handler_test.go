package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formlink/formlink/internal/config"
	"github.com/formlink/formlink/internal/logger"
	"github.com/formlink/formlink/internal/model"
	"github.com/formlink/formlink/internal/repository"
	"github.com/formlink/formlink/internal/service"
)

type fakeProcessor struct {
	got      *model.Submission
	delivery *model.Delivery
	err      error
}

func (f *fakeProcessor) Process(_ context.Context, sub *model.Submission) (*model.Delivery, error) {
	f.got = sub
	return f.delivery, f.err
}

type fakeReader struct {
	byID  map[string]*model.Delivery
	list  []model.Delivery
	limit int
	err   error
}

func (f *fakeReader) GetByID(_ context.Context, id string) (*model.Delivery, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return d, nil
}

func (f *fakeReader) ListRecent(_ context.Context, limit int) ([]model.Delivery, error) {
	f.limit = limit
	return f.list, f.err
}

type fakeCheck struct{ err error }

func (f fakeCheck) HealthCheck(context.Context) error { return f.err }

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/submissions", h.SubmitForm)
	mux.HandleFunc("GET /api/v1/deliveries", h.ListDeliveries)
	mux.HandleFunc("GET /api/v1/deliveries/{id}", h.GetDelivery)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSubmitForm(t *testing.T) {
	sent := &model.Delivery{ID: "d-1", Recipient: "jo@example.com", Status: model.DeliveryStatusSent}

	tests := []struct {
		name           string
		body           string
		processor      *fakeProcessor
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "named values",
			body:           `{"formId":"f-1","namedValues":{"Work Email Address":["jo@example.com"],"Name":["Jo"]},"triggerUid":"123"}`,
			processor:      &fakeProcessor{delivery: sent},
			expectedStatus: http.StatusAccepted,
			expectedBody:   `"deliveryId":"d-1"`,
		},
		{
			name:           "flat fields",
			body:           `{"fields":{"Work Email Address":"jo@example.com"}}`,
			processor:      &fakeProcessor{delivery: sent},
			expectedStatus: http.StatusAccepted,
			expectedBody:   `"status":"sent"`,
		},
		{
			name:           "malformed json",
			body:           `{"fields":`,
			processor:      &fakeProcessor{},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "invalid_request",
		},
		{
			name:           "no fields",
			body:           `{"formId":"f-1"}`,
			processor:      &fakeProcessor{},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "fields or namedValues are required",
		},
		{
			name:           "missing email",
			body:           `{"fields":{"Name":"Jo"}}`,
			processor:      &fakeProcessor{err: service.ErrMissingEmail},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "missing_email",
		},
		{
			name:           "invalid email",
			body:           `{"fields":{"Work Email Address":"nope"}}`,
			processor:      &fakeProcessor{err: fmt.Errorf("%w: %q", service.ErrInvalidEmail, "nope")},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "invalid_email",
		},
		{
			name: "duplicate",
			body: `{"fields":{"Work Email Address":"jo@example.com"}}`,
			processor: &fakeProcessor{
				delivery: &model.Delivery{ID: "d-2", Recipient: "jo@example.com", Status: model.DeliveryStatusDuplicate},
				err:      service.ErrDuplicateSubmission,
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"duplicate"`,
		},
		{
			name: "send failed",
			body: `{"fields":{"Work Email Address":"jo@example.com"}}`,
			processor: &fakeProcessor{
				delivery: &model.Delivery{ID: "d-3", Status: model.DeliveryStatusFailed},
				err:      fmt.Errorf("%w: %w", service.ErrSendFailed, errors.New("smtp down")),
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   "send_failed",
		},
		{
			name:           "unexpected error",
			body:           `{"fields":{"Work Email Address":"jo@example.com"}}`,
			processor:      &fakeProcessor{err: errors.New("template broken")},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(logger.Nop(), &config.Config{}, tt.processor, nil, nil)
			rec := do(t, newMux(h), http.MethodPost, "/api/v1/submissions", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
		})
	}
}

func TestSubmitFormBuildsSubmission(t *testing.T) {
	p := &fakeProcessor{delivery: &model.Delivery{ID: "d-1", Status: model.DeliveryStatusSent}}
	h := New(logger.Nop(), &config.Config{}, p, nil, nil)

	body := `{
		"submissionId": "resp-9",
		"formId": "f-1",
		"fields": {"Name": "Flat", "Team": "Ops"},
		"namedValues": {"Work Email Address": ["jo@example.com"], "Name": ["Native"]}
	}`
	rec := do(t, newMux(h), http.MethodPost, "/api/v1/submissions", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.NotNil(t, p.got)
	assert.Equal(t, "resp-9", p.got.ID)
	assert.Equal(t, "f-1", p.got.FormID)
	assert.Equal(t, "jo@example.com", p.got.Value("Work Email Address"))
	assert.Equal(t, "Native", p.got.Value("Name"))
	assert.Equal(t, "Ops", p.got.Value("Team"))
	assert.False(t, p.got.ReceivedAt.IsZero())
}

func TestSubmitFormGeneratesSubmissionID(t *testing.T) {
	p := &fakeProcessor{delivery: &model.Delivery{ID: "d-1", Status: model.DeliveryStatusSent}}
	h := New(logger.Nop(), &config.Config{}, p, nil, nil)

	do(t, newMux(h), http.MethodPost, "/api/v1/submissions", `{"fields":{"Work Email Address":"jo@example.com"}}`)

	require.NotNil(t, p.got)
	assert.NotEmpty(t, p.got.ID)
}

func TestGetDelivery(t *testing.T) {
	id := "6f1c2a8e-3b7d-4c1a-9e2f-0a1b2c3d4e5f"
	reader := &fakeReader{byID: map[string]*model.Delivery{
		id: {ID: id, Recipient: "jo@example.com", Status: model.DeliveryStatusSent},
	}}
	h := New(logger.Nop(), &config.Config{}, &fakeProcessor{}, reader, nil)
	mux := newMux(h)

	rec := do(t, mux, http.MethodGet, "/api/v1/deliveries/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.Delivery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "jo@example.com", got.Recipient)

	rec = do(t, mux, http.MethodGet, "/api/v1/deliveries/11111111-2222-3333-4444-555555555555", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/deliveries/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDeliveries(t *testing.T) {
	reader := &fakeReader{list: []model.Delivery{{ID: "a"}, {ID: "b"}}}
	h := New(logger.Nop(), &config.Config{}, &fakeProcessor{}, reader, nil)
	mux := newMux(h)

	rec := do(t, mux, http.MethodGet, "/api/v1/deliveries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
	assert.Equal(t, defaultDeliveryLimit, reader.limit)

	do(t, mux, http.MethodGet, "/api/v1/deliveries?limit=5000", "")
	assert.Equal(t, maxDeliveryLimit, reader.limit)

	rec = do(t, mux, http.MethodGet, "/api/v1/deliveries?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeliveriesDisabled(t *testing.T) {
	h := New(logger.Nop(), &config.Config{}, &fakeProcessor{}, nil, nil)

	rec := do(t, newMux(h), http.MethodGet, "/api/v1/deliveries", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndReady(t *testing.T) {
	healthy := New(logger.Nop(), &config.Config{}, &fakeProcessor{}, nil, map[string]HealthChecker{
		"redis": fakeCheck{},
	})
	rec := do(t, newMux(healthy), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = do(t, newMux(healthy), http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	degraded := New(logger.Nop(), &config.Config{}, &fakeProcessor{}, nil, map[string]HealthChecker{
		"redis":    fakeCheck{},
		"postgres": fakeCheck{err: errors.New("down")},
	})
	rec = do(t, newMux(degraded), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"postgres":"unhealthy"`)

	rec = do(t, newMux(degraded), http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
