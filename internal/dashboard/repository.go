package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/types"
)

// CounterStore is the persistence boundary for reporter counters.
type CounterStore interface {
	// Get returns the reporter's counters, all zero if none exist yet.
	Get(ctx context.Context, reporterID types.ID) (*Counters, error)

	// ApplyDelta upserts the reporter's counters with the delta applied.
	// A missing row is created lazily with all buckets at zero first;
	// every bucket is clamped at zero.
	ApplyDelta(ctx context.Context, reporterID types.ID, delta Delta) error

	// Recompute overwrites the reporter's counters from the
	// authoritative complaint set.
	Recompute(ctx context.Context, reporterID types.ID) error

	// ListReporterIDs returns every reporter that has complaints or a
	// counter row, for the reconciliation pass.
	ListReporterIDs(ctx context.Context) ([]types.ID, error)
}

// PostgresStore implements CounterStore on Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a counter store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the reporter's counters, all zero if none exist yet.
func (s *PostgresStore) Get(ctx context.Context, reporterID types.ID) (*Counters, error) {
	query := `
		SELECT reporter_id, total, pending, in_progress, resolved, rejected, updated_at
		FROM reporter_counters
		WHERE reporter_id = $1`

	c := &Counters{}
	err := s.pool.QueryRow(ctx, query, reporterID).Scan(
		&c.ReporterID, &c.Total, &c.Pending, &c.InProgress, &c.Resolved, &c.Rejected, &c.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return &Counters{ReporterID: reporterID}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get reporter counters")
	}

	return c, nil
}

// ApplyDelta upserts the reporter's counters with the delta applied,
// clamping every bucket at zero.
func (s *PostgresStore) ApplyDelta(ctx context.Context, reporterID types.ID, delta Delta) error {
	query := `
		INSERT INTO reporter_counters (
			reporter_id, total, pending, in_progress, resolved, rejected, updated_at
		) VALUES (
			$1, GREATEST(0, $2), GREATEST(0, $3), GREATEST(0, $4),
			GREATEST(0, $5), GREATEST(0, $6), $7
		)
		ON CONFLICT (reporter_id) DO UPDATE SET
			total       = GREATEST(0, reporter_counters.total + $2),
			pending     = GREATEST(0, reporter_counters.pending + $3),
			in_progress = GREATEST(0, reporter_counters.in_progress + $4),
			resolved    = GREATEST(0, reporter_counters.resolved + $5),
			rejected    = GREATEST(0, reporter_counters.rejected + $6),
			updated_at  = $7`

	_, err := s.pool.Exec(ctx, query,
		reporterID,
		delta.Total, delta.Pending, delta.InProgress, delta.Resolved, delta.Rejected,
		time.Now(),
	)

	if err != nil {
		return errors.Wrap(err, "failed to apply counter delta")
	}

	return nil
}

// Recompute overwrites the reporter's counters from the complaints table.
// It is safe to run concurrently with live traffic since it only ever
// replaces the aggregate wholesale.
func (s *PostgresStore) Recompute(ctx context.Context, reporterID types.ID) error {
	query := `
		INSERT INTO reporter_counters (
			reporter_id, total, pending, in_progress, resolved, rejected, updated_at
		)
		SELECT
			$1,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Pending'),
			COUNT(*) FILTER (WHERE status = 'In Progress'),
			COUNT(*) FILTER (WHERE status = 'Resolved'),
			COUNT(*) FILTER (WHERE status = 'Rejected'),
			$2
		FROM complaints
		WHERE reporter_id = $1
		ON CONFLICT (reporter_id) DO UPDATE SET
			total       = EXCLUDED.total,
			pending     = EXCLUDED.pending,
			in_progress = EXCLUDED.in_progress,
			resolved    = EXCLUDED.resolved,
			rejected    = EXCLUDED.rejected,
			updated_at  = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query, reporterID, time.Now())
	if err != nil {
		return errors.Wrap(err, "failed to recompute reporter counters")
	}

	return nil
}

// ListReporterIDs returns every reporter with complaints or a counter
// row. Including counter-only rows lets reconciliation zero out stale
// aggregates whose complaints were all deleted.
func (s *PostgresStore) ListReporterIDs(ctx context.Context) ([]types.ID, error) {
	query := `
		SELECT DISTINCT reporter_id FROM complaints
		UNION
		SELECT reporter_id FROM reporter_counters`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reporters")
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id types.ID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan reporter id")
		}
		ids = append(ids, id)
	}

	return ids, nil
}
