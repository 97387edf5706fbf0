package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/formlink/formlink/internal/middleware"
	"github.com/formlink/formlink/internal/model"
	"github.com/formlink/formlink/internal/service"
)

// SubmissionRequest is the webhook payload. Either Fields (one answer per
// question) or NamedValues (the form platform's native shape) may be used;
// NamedValues wins when a question appears in both.
type SubmissionRequest struct {
	SubmissionID string              `json:"submissionId"`
	FormID       string              `json:"formId"`
	Fields       map[string]string   `json:"fields"`
	NamedValues  map[string][]string `json:"namedValues"`
}

// SubmissionResponse is returned for accepted submissions
type SubmissionResponse struct {
	DeliveryID string `json:"deliveryId,omitempty"`
	Status     string `json:"status"`
	Recipient  string `json:"recipient,omitempty"`
}

func (req *SubmissionRequest) toSubmission() *model.Submission {
	fields := make(map[string][]string, len(req.Fields)+len(req.NamedValues))
	for k, v := range req.Fields {
		fields[k] = []string{v}
	}
	for k, v := range req.NamedValues {
		fields[k] = v
	}

	id := req.SubmissionID
	if id == "" {
		id = uuid.NewString()
	}

	return &model.Submission{
		ID:         id,
		FormID:     req.FormID,
		Fields:     fields,
		ReceivedAt: time.Now().UTC(),
	}
}

// SubmitForm handles POST /api/v1/submissions
// Sends the respondent a link to their personalised results dashboard.
func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	var req SubmissionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if len(req.Fields) == 0 && len(req.NamedValues) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "fields or namedValues are required")
		return
	}

	if req.FormID == "" {
		req.FormID = middleware.GetWebhookSubject(r.Context())
	}

	delivery, err := h.resultsSvc.Process(r.Context(), req.toSubmission())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingEmail):
			writeError(w, http.StatusBadRequest, "missing_email", "The submission has no email address")
		case errors.Is(err, service.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, "invalid_email", "The submitted email address is invalid")
		case errors.Is(err, service.ErrDuplicateSubmission):
			writeJSON(w, http.StatusOK, SubmissionResponse{
				DeliveryID: delivery.ID,
				Status:     string(model.DeliveryStatusDuplicate),
				Recipient:  delivery.Recipient,
			})
		case errors.Is(err, service.ErrSendFailed):
			writeError(w, http.StatusBadGateway, "send_failed", "The results email could not be sent")
		default:
			h.log.WithRequestID(middleware.GetRequestID(r.Context())).Error().Err(err).Msg("submission processing failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to process submission")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, SubmissionResponse{
		DeliveryID: delivery.ID,
		Status:     string(delivery.Status),
		Recipient:  delivery.Recipient,
	})
}
