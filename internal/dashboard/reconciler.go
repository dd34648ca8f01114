package dashboard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fixmycity/platform/internal/shared/metrics"
)

// Reconciler recomputes every reporter's counters from the authoritative
// complaint set, correcting drift left behind by best-effort sync
// failures. It runs periodically out-of-band and is safe alongside live
// traffic.
type Reconciler struct {
	store  CounterStore
	logger *zap.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(store CounterStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Run recomputes all reporter counters. Per-reporter failures are logged
// and skipped so one bad row does not abort the pass.
func (r *Reconciler) Run(ctx context.Context) error {
	ids, err := r.store.ListReporterIDs(ctx)
	if err != nil {
		metrics.RecordReconcileRun("failure")
		return err
	}

	failed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			metrics.RecordReconcileRun("failure")
			return ctx.Err()
		}

		if err := r.store.Recompute(ctx, id); err != nil {
			failed++
			r.logger.Error("failed to recompute reporter counters",
				zap.String("reporter_id", id.String()),
				zap.Error(err),
			)
		}
	}

	if failed > 0 {
		metrics.RecordReconcileRun("partial")
		r.logger.Warn("counter reconciliation finished with failures",
			zap.Int("reporters", len(ids)),
			zap.Int("failed", failed),
		)
		return fmt.Errorf("reconciliation failed for %d of %d reporters", failed, len(ids))
	}

	metrics.RecordReconcileRun("success")
	r.logger.Info("counter reconciliation finished",
		zap.Int("reporters", len(ids)),
	)
	return nil
}
