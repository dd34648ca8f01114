package domain

import (
	"context"

	"github.com/fixmycity/platform/internal/shared/types"
)

// Repository defines the interface for complaint persistence
type Repository interface {
	// Complaint operations
	Save(ctx context.Context, c *Complaint) error
	FindByID(ctx context.Context, id types.ID) (*Complaint, error)
	Update(ctx context.Context, c *Complaint) error
	Delete(ctx context.Context, id types.ID) error

	// Query operations
	List(ctx context.Context, filter ListFilter) ([]Complaint, int, error)
	FindByWorker(ctx context.Context, workerID types.ID, filter ListFilter) ([]Complaint, int, error)

	// ActiveTaskCount counts the worker's complaints in Assigned or
	// In Progress status.
	ActiveTaskCount(ctx context.Context, workerID types.ID) (int, error)

	// AssignIfPending performs the assignment as a single conditional
	// write keyed on the complaint still being Pending and the worker
	// holding fewer than maxTasks active tasks. It returns the updated
	// complaint and the post-assignment active task count. The specific
	// failure is reported as not found, invalid state or at capacity.
	AssignIfPending(ctx context.Context, complaintID, workerID, adminID types.ID, maxTasks int, note string) (*Complaint, int, error)

	// SetPendingUpdate persists the aggregate's pending status update,
	// conditioned on no prior unreviewed request existing.
	SetPendingUpdate(ctx context.Context, c *Complaint) error

	// CompleteReview persists the outcome of a review, conditioned on an
	// unreviewed request existing. The entry is appended to the history
	// in the same transaction.
	CompleteReview(ctx context.Context, c *Complaint, entry *HistoryEntry) error

	// UpdateStatus persists a direct administrative status change
	// together with its history entry.
	UpdateStatus(ctx context.Context, c *Complaint, entry *HistoryEntry) error
}

// ListFilter defines filters for listing complaints
type ListFilter struct {
	Status     *Status       `json:"status,omitempty"`
	ReporterID *types.ID     `json:"reporter_id,omitempty"`
	Region     *types.Region `json:"region,omitempty"`
	Category   string        `json:"category,omitempty"`
	Search     string        `json:"search,omitempty"`
	Limit      int           `json:"limit,omitempty"`
	Offset     int           `json:"offset,omitempty"`
}
