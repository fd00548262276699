package model

import "time"

// DeliveryStatus is the outcome of one send attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryRecord is the persisted outcome of one message send attempt.
type DeliveryRecord struct {
	ID                string         `json:"id"                            db:"id"`
	EventType         EventType      `json:"event_type"                    db:"event_type"`
	CorrelationID     int64          `json:"correlation_id"                db:"correlation_id"`
	Role              MessageRole    `json:"role"                          db:"role"`
	Recipient         string         `json:"recipient"                     db:"recipient"`
	Subject           string         `json:"subject"                       db:"subject"`
	Transport         string         `json:"transport"                     db:"transport"`
	ProviderMessageID *string        `json:"provider_message_id,omitempty" db:"provider_message_id"`
	Status            DeliveryStatus `json:"status"                        db:"status"`
	Error             *string        `json:"error,omitempty"               db:"error"`
	CreatedAt         time.Time      `json:"created_at"                    db:"created_at"`
}

// DeliveryListOptions filters delivery record listings.
type DeliveryListOptions struct {
	EventType     *EventType
	CorrelationID *int64
	Limit         int
	Offset        int
}
