package directory

import (
	"context"

	"github.com/fixmycity/platform/internal/shared/types"
)

// Reporter is a citizen identity as known to the municipal registry.
// The region is the source of truth for where the reporter's complaints
// may be assigned.
type Reporter struct {
	ID     types.ID     `json:"id"`
	Name   string       `json:"name"`
	Email  string       `json:"email,omitempty"`
	Region types.Region `json:"region"`
}

// Service resolves reporter identities from the citizen registry.
type Service interface {
	GetReporter(ctx context.Context, id types.ID) (*Reporter, error)
	Health(ctx context.Context) error
}
