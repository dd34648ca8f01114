package worker

import (
	"time"

	"github.com/fixmycity/platform/internal/shared/types"
)

// Status defines the status of a worker. Inactive workers are never
// assignable.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Worker represents a field worker ("labour") employed by the
// municipality.
type Worker struct {
	ID     types.ID     `json:"id"`
	Name   string       `json:"name"`
	Email  string       `json:"email"`
	Phone  string       `json:"phone,omitempty"`
	Region types.Region `json:"region"`
	Status Status       `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the worker can receive assignments at all.
func (w Worker) IsActive() bool {
	return w.Status == StatusActive
}

// CreateWorkerRequest is the request to register a worker
type CreateWorkerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	City     string `json:"city"`
	District string `json:"district"`
	Pincode  string `json:"pincode"`
}

// UpdateWorkerRequest is the request to update a worker
type UpdateWorkerRequest struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// ListFilter defines filters for listing workers
type ListFilter struct {
	Status *Status       `json:"status,omitempty"`
	Region *types.Region `json:"region,omitempty"`
	Search string        `json:"search,omitempty"`
	Limit  int           `json:"limit,omitempty"`
	Offset int           `json:"offset,omitempty"`
}
