package model

import "time"

// MessageRole distinguishes the recipients of a fan-out dispatch.
type MessageRole string

const (
	// RolePrimary is the single recipient of a non-fan-out event.
	RolePrimary MessageRole = "primary"
	// RoleReviewer receives the detailed review request.
	RoleReviewer MessageRole = "reviewer"
	// RoleSubmitter receives the short confirmation for a review request.
	RoleSubmitter MessageRole = "submitter"
)

// Message is one rendered notification ready for delivery.
type Message struct {
	Role      MessageRole `json:"role"`
	Recipient string      `json:"recipient"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
}

// AckStatus is the overall outcome reported to the event producer.
type AckStatus string

const (
	AckSuccess AckStatus = "success"
	AckError   AckStatus = "error"
)

// MessageResult reports the delivery outcome of one message.
type MessageResult struct {
	Role              MessageRole `json:"role"`
	Recipient         string      `json:"recipient"`
	Subject           string      `json:"subject"`
	Sent              bool        `json:"sent"`
	ProviderMessageID string      `json:"provider_message_id,omitempty"`
	Error             string      `json:"error,omitempty"`
}

// Ack is the acknowledgement returned for every routed envelope. It echoes the
// correlation identifiers it processed so the producer can keep its own books.
type Ack struct {
	Status  AckStatus `json:"status"`
	Message string    `json:"message"`
	// Error is the machine-readable code of a rejected envelope.
	Error string `json:"error,omitempty"`
	// Fields names the missing or invalid payload fields of a rejected envelope.
	Fields          []string        `json:"fields,omitempty"`
	EventType       EventType       `json:"event_type,omitempty"`
	CorrelationID   int64           `json:"correlation_id,omitempty"`
	SpecificationID *int64          `json:"specification_id,omitempty"`
	ValidationRunID *int64          `json:"validation_run_id,omitempty"`
	UploadID        *int64          `json:"upload_id,omitempty"`
	ReviewURL       string          `json:"review_url,omitempty"`
	ArtifactsCount  *int            `json:"artifacts_count,omitempty"`
	Messages        []MessageResult `json:"messages,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// SentCount returns how many messages were delivered.
func (a *Ack) SentCount() int {
	n := 0
	for _, m := range a.Messages {
		if m.Sent {
			n++
		}
	}
	return n
}
