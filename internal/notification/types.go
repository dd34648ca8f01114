package notification

import (
	"time"

	"github.com/fixmycity/platform/internal/shared/types"
)

// Channel is the delivery channel for a notification
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Status is the delivery status of a notification
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification is one message to a reporter or worker about a
// complaint lifecycle change.
type Notification struct {
	ID            types.ID       `json:"id"`
	Channel       Channel        `json:"channel"`
	RecipientID   types.ID       `json:"recipient_id"`
	RecipientType string         `json:"recipient_type"` // reporter, worker
	Subject       string         `json:"subject"`
	Body          string         `json:"body"`
	Data          map[string]any `json:"data,omitempty"`
	Status        Status         `json:"status"`
	Attempts      int            `json:"attempts"`
	CreatedAt     time.Time      `json:"created_at"`
	SentAt        *time.Time     `json:"sent_at,omitempty"`
}

// Stats tracks delivery outcomes.
type Stats struct {
	Enqueued int64 `json:"enqueued"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
}
