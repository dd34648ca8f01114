package domain

import (
	"fmt"
	"time"

	"github.com/fixmycity/platform/internal/shared/types"
)

// Status defines the status of a complaint
type Status string

const (
	StatusPending    Status = "Pending"
	StatusAssigned   Status = "Assigned"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	// StatusRejected is reserved for administrative override paths.
	StatusRejected Status = "Rejected"
)

// IsValid reports whether the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInProgress, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// IsActive reports whether a complaint in this status occupies a slot of
// its assigned worker's capacity.
func (s Status) IsActive() bool {
	return s == StatusAssigned || s == StatusInProgress
}

// Complaint is the aggregate root for the assignment and status workflow
type Complaint struct {
	ID          types.ID     `json:"id"`
	ReporterID  types.ID     `json:"reporter_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Region      types.Region `json:"region"`
	Status      Status       `json:"status"`

	// Assignment, set exactly once per assignment event
	AssignedWorker *types.ID  `json:"assigned_worker,omitempty"`
	AssignedBy     *types.ID  `json:"assigned_by,omitempty"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`

	// Informational work timestamps, stamped at request time
	WorkStartedAt   *time.Time `json:"work_started_at,omitempty"`
	WorkCompletedAt *time.Time `json:"work_completed_at,omitempty"`

	// At most one outstanding request, cleared once reviewed
	PendingUpdate *PendingStatusUpdate `json:"pending_status_update,omitempty"`

	History []HistoryEntry `json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Domain events, not persisted, collected for publishing
	domainEvents []Event
}

// NewComplaint creates a new complaint in Pending status. The region is
// inherited from the reporter at creation time and immutable thereafter.
func NewComplaint(reporterID types.ID, title, description, category string, region types.Region) (*Complaint, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if reporterID.IsZero() {
		return nil, fmt.Errorf("reporter is required")
	}
	if err := region.Validate(); err != nil {
		return nil, err
	}
	if category == "" {
		category = "general"
	}

	now := time.Now()
	c := &Complaint{
		ID:          types.NewID(),
		ReporterID:  reporterID,
		Title:       title,
		Description: description,
		Category:    category,
		Region:      region,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	c.addHistory(StatusPending, reporterID, "reporter", "Complaint filed")
	c.addEvent("complaint.created", map[string]any{
		"reporter_id": reporterID,
		"category":    category,
		"region":      region,
	})

	return c, nil
}

// Assign hands the complaint to a worker. Only a Pending complaint can be
// assigned; the note carries the post-assignment occupancy for the
// history trail.
func (c *Complaint) Assign(workerID, adminID types.ID, note string) error {
	if c.Status != StatusPending {
		return fmt.Errorf("can only assign a pending complaint")
	}

	now := time.Now()
	c.Status = StatusAssigned
	c.AssignedWorker = &workerID
	c.AssignedBy = &adminID
	c.AssignedAt = &now
	c.UpdatedAt = now

	c.addHistory(StatusAssigned, adminID, "admin", note)
	c.addEvent("complaint.assigned", map[string]any{
		"worker_id": workerID,
		"admin_id":  adminID,
	})

	return nil
}

// RequestStatusChange records a worker's proposal to move the complaint
// to a new status. The proposal does not change the status; it must be
// ratified by an administrator first. Work timestamps are stamped at
// request time regardless of the later review outcome.
func (c *Complaint) RequestStatusChange(workerID types.ID, requested Status, remarks string) error {
	if c.AssignedWorker == nil || *c.AssignedWorker != workerID {
		return fmt.Errorf("complaint is not assigned to this worker")
	}
	if requested != StatusInProgress && requested != StatusResolved {
		return fmt.Errorf("workers may only request In Progress or Resolved")
	}
	if c.Status != StatusAssigned && c.Status != StatusInProgress {
		return fmt.Errorf("complaint is not in a workable status")
	}
	if c.PendingUpdate != nil {
		return fmt.Errorf("a status change request is already pending review")
	}

	now := time.Now()
	c.PendingUpdate = &PendingStatusUpdate{
		RequestedStatus: requested,
		RequestedBy:     workerID,
		RequestedAt:     now,
		Remarks:         remarks,
	}

	if requested == StatusInProgress && c.WorkStartedAt == nil {
		c.WorkStartedAt = &now
	}
	if requested == StatusResolved && c.WorkCompletedAt == nil {
		c.WorkCompletedAt = &now
	}
	c.UpdatedAt = now

	c.addEvent("complaint.status_requested", map[string]any{
		"worker_id":        workerID,
		"requested_status": requested,
	})

	return nil
}

// ApplyReview ratifies or rejects the outstanding status change request.
// The pending record is cleared either way; only approval moves the
// status. Returns the old and new status for counter synchronization.
func (c *Complaint) ApplyReview(adminID types.ID, approve bool, adminNote string) (Status, Status, error) {
	if c.PendingUpdate == nil {
		return "", "", fmt.Errorf("no status change request is pending review")
	}

	now := time.Now()
	requested := c.PendingUpdate.RequestedStatus
	oldStatus := c.Status
	c.PendingUpdate = nil
	c.UpdatedAt = now

	if !approve {
		note := "Status change rejected"
		if adminNote != "" {
			note = fmt.Sprintf("Status change rejected: %s", adminNote)
		}
		c.addHistory(oldStatus, adminID, "admin", note)
		c.addEvent("complaint.status_rejected", map[string]any{
			"admin_id":         adminID,
			"requested_status": requested,
		})
		return oldStatus, oldStatus, nil
	}

	c.Status = requested
	note := fmt.Sprintf("Status changed to %s", requested)
	if adminNote != "" {
		note = fmt.Sprintf("Status changed to %s: %s", requested, adminNote)
	}
	c.addHistory(requested, adminID, "admin", note)
	c.addEvent("complaint.status_changed", map[string]any{
		"admin_id":   adminID,
		"old_status": oldStatus,
		"new_status": requested,
	})

	return oldStatus, requested, nil
}

// SetStatusDirect is the administrative correction path. It bypasses the
// request and review protocol but records history identically. Any
// outstanding request is cleared.
func (c *Complaint) SetStatusDirect(adminID types.ID, newStatus Status, note string) (Status, error) {
	switch newStatus {
	case StatusPending, StatusInProgress, StatusResolved:
	default:
		return "", fmt.Errorf("direct status change allows only Pending, In Progress or Resolved")
	}

	oldStatus := c.Status
	now := time.Now()
	c.Status = newStatus
	c.PendingUpdate = nil
	c.UpdatedAt = now

	if note == "" {
		note = fmt.Sprintf("Status set to %s by administrator", newStatus)
	}
	c.addHistory(newStatus, adminID, "admin", note)
	c.addEvent("complaint.status_changed", map[string]any{
		"admin_id":   adminID,
		"old_status": oldStatus,
		"new_status": newStatus,
		"direct":     true,
	})

	return oldStatus, nil
}

// GetDomainEvents returns and clears domain events
func (c *Complaint) GetDomainEvents() []Event {
	events := c.domainEvents
	c.domainEvents = nil
	return events
}

// LatestHistory returns the most recently appended history entry, or nil.
func (c *Complaint) LatestHistory() *HistoryEntry {
	if len(c.History) == 0 {
		return nil
	}
	return &c.History[len(c.History)-1]
}

func (c *Complaint) addHistory(status Status, actorID types.ID, actorType, note string) {
	c.History = append(c.History, HistoryEntry{
		ID:          types.NewID(),
		ComplaintID: c.ID,
		Status:      status,
		ActorID:     actorID,
		ActorType:   actorType,
		Note:        note,
		CreatedAt:   time.Now(),
	})
}

func (c *Complaint) addEvent(eventType string, data map[string]any) {
	c.domainEvents = append(c.domainEvents, Event{
		Type:        eventType,
		ComplaintID: c.ID,
		Data:        data,
	})
}
