package formlink

import "time"

// Delivery statuses reported by the API.
const (
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusDuplicate = "duplicate"
)

// SubmitRequest is one form submission. Use Fields for single answers or
// NamedValues for the form platform's native multi-answer shape.
type SubmitRequest struct {
	SubmissionID string              `json:"submissionId,omitempty"`
	FormID       string              `json:"formId,omitempty"`
	Fields       map[string]string   `json:"fields,omitempty"`
	NamedValues  map[string][]string `json:"namedValues,omitempty"`
}

// SubmitResponse is returned for an accepted or suppressed submission.
type SubmitResponse struct {
	DeliveryID string `json:"deliveryId,omitempty"`
	Status     string `json:"status"`
	Recipient  string `json:"recipient,omitempty"`
}

// Duplicate reports whether the link was suppressed because it was sent recently.
func (r *SubmitResponse) Duplicate() bool {
	return r.Status == StatusDuplicate
}

// Delivery is a recorded results link delivery.
type Delivery struct {
	ID           string     `json:"id"`
	SubmissionID string     `json:"submissionId"`
	FormID       *string    `json:"formId,omitempty"`
	Recipient    string     `json:"recipient"`
	Name         *string    `json:"name,omitempty"`
	ResultsURL   string     `json:"resultsUrl"`
	Provider     string     `json:"provider"`
	Status       string     `json:"status"`
	Error        *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	SentAt       *time.Time `json:"sentAt,omitempty"`
}

// DeliveryList is returned by ListDeliveries.
type DeliveryList struct {
	Deliveries []Delivery `json:"deliveries"`
	Count      int        `json:"count"`
}
