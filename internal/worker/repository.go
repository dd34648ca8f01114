package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/types"
)

// Repository provides database operations for workers
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new worker repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create registers a new worker
func (r *Repository) Create(ctx context.Context, w *Worker) error {
	query := `
		INSERT INTO workers (
			id, name, email, phone, city, district, pincode, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.Name, w.Email, w.Phone,
		w.Region.City, w.Region.District, w.Region.Pincode, w.Status,
		w.CreatedAt, w.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("worker with this email already exists")
		}
		return errors.Wrap(err, "failed to create worker")
	}

	return nil
}

// Get retrieves a worker by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Worker, error) {
	query := `
		SELECT id, name, email, phone, city, district, pincode, status,
			created_at, updated_at
		FROM workers
		WHERE id = $1`

	w := &Worker{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.Name, &w.Email, &w.Phone,
		&w.Region.City, &w.Region.District, &w.Region.Pincode, &w.Status,
		&w.CreatedAt, &w.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("worker", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get worker")
	}

	return w, nil
}

// Update updates a worker
func (r *Repository) Update(ctx context.Context, w *Worker) error {
	query := `
		UPDATE workers SET
			name = $2, email = $3, phone = $4, status = $5, updated_at = $6
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		w.ID, w.Name, w.Email, w.Phone, w.Status, w.UpdatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update worker")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("worker", w.ID.String())
	}

	return nil
}

// List lists workers with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Worker, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.Region != nil {
		conditions = append(conditions, fmt.Sprintf("city = $%d AND district = $%d AND pincode = $%d", argNum, argNum+1, argNum+2))
		args = append(args, filter.Region.City, filter.Region.District, filter.Region.Pincode)
		argNum += 3
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM workers %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count workers")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT id, name, email, phone, city, district, pincode, status,
			created_at, updated_at
		FROM workers
		%s
		ORDER BY name
		LIMIT $%d OFFSET $%d`, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list workers")
	}
	defer rows.Close()

	var workers []Worker
	for rows.Next() {
		var w Worker
		err := rows.Scan(
			&w.ID, &w.Name, &w.Email, &w.Phone,
			&w.Region.City, &w.Region.District, &w.Region.Pincode, &w.Status,
			&w.CreatedAt, &w.UpdatedAt,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan worker")
		}
		workers = append(workers, w)
	}

	return workers, total, nil
}

// ListActiveInRegion lists active workers in a region, used by the
// assignment engine's available-workers query.
func (r *Repository) ListActiveInRegion(ctx context.Context, region types.Region) ([]Worker, error) {
	query := `
		SELECT id, name, email, phone, city, district, pincode, status,
			created_at, updated_at
		FROM workers
		WHERE status = 'active' AND city = $1 AND district = $2 AND pincode = $3
		ORDER BY name`

	rows, err := r.pool.Query(ctx, query, region.City, region.District, region.Pincode)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list workers in region")
	}
	defer rows.Close()

	var workers []Worker
	for rows.Next() {
		var w Worker
		err := rows.Scan(
			&w.ID, &w.Name, &w.Email, &w.Phone,
			&w.Region.City, &w.Region.District, &w.Region.Pincode, &w.Status,
			&w.CreatedAt, &w.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan worker")
		}
		workers = append(workers, w)
	}

	return workers, nil
}
