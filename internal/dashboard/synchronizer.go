package dashboard

import (
	"context"

	"go.uber.org/zap"

	"github.com/fixmycity/platform/internal/complaint/domain"
	"github.com/fixmycity/platform/internal/shared/metrics"
	"github.com/fixmycity/platform/internal/shared/types"
)

// Synchronizer keeps reporter counters tracking complaint mutations. It
// is best-effort and colocated with the mutating operation: a failed
// counter update never fails or rolls back the complaint write, it is
// logged and left for reconciliation.
type Synchronizer struct {
	store  CounterStore
	logger *zap.Logger
}

// NewSynchronizer creates a counter synchronizer.
func NewSynchronizer(store CounterStore, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{store: store, logger: logger}
}

// OnCreate increments total and the bucket of the initial status.
func (s *Synchronizer) OnCreate(ctx context.Context, reporterID types.ID, initialStatus domain.Status) {
	delta := Delta{Total: 1}.add(bucketDelta(initialStatus, 1))
	s.apply(ctx, reporterID, delta, "create")
}

// OnTransition moves one complaint between status buckets. Total never
// changes on a transition.
func (s *Synchronizer) OnTransition(ctx context.Context, reporterID types.ID, oldStatus, newStatus domain.Status) {
	if oldStatus == newStatus {
		return
	}

	delta := bucketDelta(oldStatus, -1).add(bucketDelta(newStatus, 1))
	if delta.IsZero() {
		return
	}
	s.apply(ctx, reporterID, delta, "transition")
}

// OnDelete rolls the deleted complaint out of total and its bucket.
func (s *Synchronizer) OnDelete(ctx context.Context, reporterID types.ID, status domain.Status) {
	delta := Delta{Total: -1}.add(bucketDelta(status, -1))
	s.apply(ctx, reporterID, delta, "delete")
}

func (s *Synchronizer) apply(ctx context.Context, reporterID types.ID, delta Delta, op string) {
	if err := s.store.ApplyDelta(ctx, reporterID, delta); err != nil {
		metrics.RecordCounterSyncFailure()
		s.logger.Error("counter sync failed, drift will be corrected by reconciliation",
			zap.String("reporter_id", reporterID.String()),
			zap.String("operation", op),
			zap.Error(err),
		)
	}
}
