package model

import (
	"strings"
	"time"
)

// Submission is one form response as delivered by the form platform.
// Fields mirrors the platform's named values: question title -> answers.
type Submission struct {
	ID         string              `json:"id"`
	FormID     string              `json:"formId,omitempty"`
	Fields     map[string][]string `json:"fields"`
	ReceivedAt time.Time           `json:"receivedAt"`
}

// Value returns the first answer to the named question, trimmed, or "".
func (s *Submission) Value(field string) string {
	values, ok := s.Fields[field]
	if !ok || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// DeliveryStatus is the outcome of a results email
type DeliveryStatus string

// Delivery statuses
const (
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusDuplicate DeliveryStatus = "duplicate"
)

// Delivery records one attempt to mail a results link
type Delivery struct {
	ID           string         `json:"id"`
	SubmissionID string         `json:"submissionId"`
	FormID       *string        `json:"formId,omitempty"`
	Recipient    string         `json:"recipient"`
	Name         *string        `json:"name,omitempty"`
	ResultsURL   string         `json:"resultsUrl"`
	Provider     string         `json:"provider"`
	Status       DeliveryStatus `json:"status"`
	Error        *string        `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	SentAt       *time.Time     `json:"sentAt,omitempty"`
}
