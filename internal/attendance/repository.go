package attendance

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/types"
)

// Repository is the persistence boundary of the attendance ledger.
type Repository interface {
	// Append writes a new ledger entry. The office-hours gate lives here,
	// at the lowest persistence boundary, so no code path can bypass it
	// by constructing records directly.
	Append(ctx context.Context, event *Event) error

	// Latest returns the worker's most recent event by timestamp, or nil
	// if the worker has never logged one.
	Latest(ctx context.Context, workerID types.ID) (*Event, error)

	// HasEventOnDay reports whether the worker logged an event of the
	// given type on the day containing ref.
	HasEventOnDay(ctx context.Context, workerID types.ID, eventType EventType, ref time.Time) (bool, error)

	// History returns the worker's events, newest first.
	History(ctx context.Context, workerID types.ID, limit int) ([]Event, error)

	// ListOnDay returns all events across workers on the day containing
	// ref, newest first.
	ListOnDay(ctx context.Context, ref time.Time) ([]Event, error)
}

// PostgresRepository implements Repository on Postgres.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	window Window
}

// NewPostgresRepository creates an attendance repository enforcing the
// given office-hours window.
func NewPostgresRepository(pool *pgxpool.Pool, window Window) *PostgresRepository {
	return &PostgresRepository{pool: pool, window: window}
}

// Append writes a new ledger entry after validating the office-hours gate.
func (r *PostgresRepository) Append(ctx context.Context, event *Event) error {
	if !event.AdminOverride && !r.window.Contains(event.Timestamp) {
		return errors.OfficeHoursViolation(event.Timestamp, r.window.Start(), r.window.End())
	}

	query := `
		INSERT INTO attendance_events (
			id, worker_id, type, ts, recorded_by, admin_override, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.WorkerID, event.Type, event.Timestamp,
		event.RecordedBy, event.AdminOverride, event.CreatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to append attendance event")
	}

	return nil
}

// Latest returns the worker's most recent event by timestamp.
func (r *PostgresRepository) Latest(ctx context.Context, workerID types.ID) (*Event, error) {
	query := `
		SELECT id, worker_id, type, ts, recorded_by, admin_override, created_at
		FROM attendance_events
		WHERE worker_id = $1
		ORDER BY ts DESC
		LIMIT 1`

	event := &Event{}
	err := r.pool.QueryRow(ctx, query, workerID).Scan(
		&event.ID, &event.WorkerID, &event.Type, &event.Timestamp,
		&event.RecordedBy, &event.AdminOverride, &event.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read latest attendance event")
	}

	return event, nil
}

// HasEventOnDay reports whether the worker logged an event of the given
// type on the day containing ref.
func (r *PostgresRepository) HasEventOnDay(ctx context.Context, workerID types.ID, eventType EventType, ref time.Time) (bool, error) {
	dayStart, dayEnd := dayBounds(ref)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM attendance_events
			WHERE worker_id = $1 AND type = $2 AND ts >= $3 AND ts < $4
		)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, workerID, eventType, dayStart, dayEnd).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check attendance events for day")
	}

	return exists, nil
}

// History returns the worker's events, newest first.
func (r *PostgresRepository) History(ctx context.Context, workerID types.ID, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, worker_id, type, ts, recorded_by, admin_override, created_at
		FROM attendance_events
		WHERE worker_id = $1
		ORDER BY ts DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, workerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read attendance history")
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListOnDay returns all events on the day containing ref, newest first.
func (r *PostgresRepository) ListOnDay(ctx context.Context, ref time.Time) ([]Event, error) {
	dayStart, dayEnd := dayBounds(ref)

	query := `
		SELECT id, worker_id, type, ts, recorded_by, admin_override, created_at
		FROM attendance_events
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts DESC`

	rows, err := r.pool.Query(ctx, query, dayStart, dayEnd)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list attendance events for day")
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		err := rows.Scan(
			&e.ID, &e.WorkerID, &e.Type, &e.Timestamp,
			&e.RecordedBy, &e.AdminOverride, &e.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan attendance event")
		}
		events = append(events, e)
	}
	return events, nil
}

func dayBounds(ref time.Time) (time.Time, time.Time) {
	dayStart := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	return dayStart, dayStart.AddDate(0, 0, 1)
}
