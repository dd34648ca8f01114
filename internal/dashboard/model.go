package dashboard

import (
	"time"

	"github.com/fixmycity/platform/internal/complaint/domain"
	"github.com/fixmycity/platform/internal/shared/types"
)

// Counters is the denormalized per-reporter rollup of complaint statuses.
// It is a cache over the complaints table with no transactional guarantee;
// drift is corrected by the reconciliation pass.
type Counters struct {
	ReporterID types.ID  `json:"reporter_id"`
	Total      int       `json:"total"`
	Pending    int       `json:"pending"`
	InProgress int       `json:"in_progress"`
	Resolved   int       `json:"resolved"`
	Rejected   int       `json:"rejected"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Delta is an increment to apply to a reporter's counters. Every bucket
// is clamped at zero on application.
type Delta struct {
	Total      int
	Pending    int
	InProgress int
	Resolved   int
	Rejected   int
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// bucketDelta returns the delta that moves one complaint into or out of
// the bucket for the given status. Assigned occupies no bucket: it is
// counted in total only.
func bucketDelta(status domain.Status, n int) Delta {
	switch status {
	case domain.StatusPending:
		return Delta{Pending: n}
	case domain.StatusInProgress:
		return Delta{InProgress: n}
	case domain.StatusResolved:
		return Delta{Resolved: n}
	case domain.StatusRejected:
		return Delta{Rejected: n}
	}
	return Delta{}
}

func (d Delta) add(other Delta) Delta {
	return Delta{
		Total:      d.Total + other.Total,
		Pending:    d.Pending + other.Pending,
		InProgress: d.InProgress + other.InProgress,
		Resolved:   d.Resolved + other.Resolved,
		Rejected:   d.Rejected + other.Rejected,
	}
}
