package domain

import (
	"time"

	"github.com/fixmycity/platform/internal/shared/types"
)

// HistoryEntry is one record in a complaint's append-only status trail.
// The first entry is written at creation and never removed.
type HistoryEntry struct {
	ID          types.ID  `json:"id"`
	ComplaintID types.ID  `json:"complaint_id"`
	Status      Status    `json:"status"`
	ActorID     types.ID  `json:"actor_id"`
	ActorType   string    `json:"actor_type"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PendingStatusUpdate is the at-most-one outstanding status change
// proposal awaiting administrator review.
type PendingStatusUpdate struct {
	RequestedStatus Status    `json:"requested_status"`
	RequestedBy     types.ID  `json:"requested_by"`
	RequestedAt     time.Time `json:"requested_at"`
	Remarks         string    `json:"remarks,omitempty"`
}

// Event is a domain event for publishing
type Event struct {
	Type        string         `json:"type"`
	ComplaintID types.ID       `json:"complaint_id"`
	Data        map[string]any `json:"data,omitempty"`
}
