package infrastructure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixmycity/platform/internal/complaint/domain"
	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/types"
)

const activeStatuses = `'Assigned', 'In Progress'`

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save saves a new complaint together with its initial history
func (r *PostgresRepository) Save(ctx context.Context, c *domain.Complaint) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO complaints (
			id, reporter_id, title, description, category,
			city, district, pincode, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, query,
		c.ID, c.ReporterID, c.Title, c.Description, c.Category,
		c.Region.City, c.Region.District, c.Region.Pincode, c.Status,
		c.CreatedAt, c.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("complaint already exists")
		}
		return errors.Wrap(err, "failed to save complaint")
	}

	for _, entry := range c.History {
		if err := saveHistoryEntry(ctx, tx, &entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// FindByID finds a complaint by ID, including its status history
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Complaint, error) {
	query := `
		SELECT id, reporter_id, title, description, category,
			city, district, pincode, status,
			assigned_worker, assigned_by, assigned_at,
			work_started_at, work_completed_at,
			pending_status, pending_requested_by, pending_requested_at, pending_remarks,
			created_at, updated_at
		FROM complaints
		WHERE id = $1`

	c, err := scanComplaint(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("complaint", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find complaint")
	}

	history, err := r.getHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	c.History = history

	return c, nil
}

// Update updates an existing complaint. The pending status update has
// dedicated conditional writes and is not touched here.
func (r *PostgresRepository) Update(ctx context.Context, c *domain.Complaint) error {
	query := `
		UPDATE complaints SET
			title = $2, description = $3, category = $4, status = $5,
			assigned_worker = $6, assigned_by = $7, assigned_at = $8,
			work_started_at = $9, work_completed_at = $10,
			updated_at = $11
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		c.ID, c.Title, c.Description, c.Category, c.Status,
		c.AssignedWorker, c.AssignedBy, c.AssignedAt,
		c.WorkStartedAt, c.WorkCompletedAt,
		c.UpdatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update complaint")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("complaint", c.ID.String())
	}

	return nil
}

// Delete removes a complaint; its history rows cascade
func (r *PostgresRepository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM complaints WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete complaint")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("complaint", id.String())
	}

	return nil
}

// List lists complaints with filters
func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Complaint, int, error) {
	return r.listComplaints(ctx, filter, "", nil)
}

// FindByWorker finds complaints assigned to a worker
func (r *PostgresRepository) FindByWorker(ctx context.Context, workerID types.ID, filter domain.ListFilter) ([]domain.Complaint, int, error) {
	return r.listComplaints(ctx, filter, "assigned_worker = $%d", []interface{}{workerID})
}

// ActiveTaskCount counts the worker's complaints in Assigned or
// In Progress status.
func (r *PostgresRepository) ActiveTaskCount(ctx context.Context, workerID types.ID) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM complaints
		WHERE assigned_worker = $1 AND status IN (%s)`, activeStatuses)

	var count int
	if err := r.pool.QueryRow(ctx, query, workerID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count active tasks")
	}

	return count, nil
}

// AssignIfPending performs the assignment as one conditional update. The
// status guard defeats double assignment of the same complaint; the
// capacity subquery defeats concurrent overruns of the worker's cap.
// Zero rows affected is disambiguated by a re-read.
func (r *PostgresRepository) AssignIfPending(ctx context.Context, complaintID, workerID, adminID types.ID, maxTasks int, note string) (*domain.Complaint, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	query := fmt.Sprintf(`
		UPDATE complaints SET
			status = 'Assigned',
			assigned_worker = $2, assigned_by = $3, assigned_at = $4,
			updated_at = $4
		WHERE id = $1
			AND status = 'Pending'
			AND (
				SELECT COUNT(*) FROM complaints
				WHERE assigned_worker = $2 AND status IN (%s)
			) < $5`, activeStatuses)

	result, err := tx.Exec(ctx, query, complaintID, workerID, adminID, now, maxTasks)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to assign complaint")
	}

	if result.RowsAffected() == 0 {
		return nil, 0, r.assignFailureReason(ctx, complaintID, workerID, maxTasks)
	}

	entry := &domain.HistoryEntry{
		ID:          types.NewID(),
		ComplaintID: complaintID,
		Status:      domain.StatusAssigned,
		ActorID:     adminID,
		ActorType:   "admin",
		Note:        note,
		CreatedAt:   now,
	}
	if err := saveHistoryEntry(ctx, tx, entry); err != nil {
		return nil, 0, err
	}

	countQuery := fmt.Sprintf(`
		SELECT COUNT(*) FROM complaints
		WHERE assigned_worker = $1 AND status IN (%s)`, activeStatuses)

	var count int
	if err := tx.QueryRow(ctx, countQuery, workerID).Scan(&count); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count active tasks")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, errors.Wrap(err, "failed to commit transaction")
	}

	c, err := r.FindByID(ctx, complaintID)
	if err != nil {
		return nil, 0, err
	}

	return c, count, nil
}

// assignFailureReason disambiguates a zero-row conditional assign.
func (r *PostgresRepository) assignFailureReason(ctx context.Context, complaintID, workerID types.ID, maxTasks int) error {
	var status domain.Status
	err := r.pool.QueryRow(ctx, `SELECT status FROM complaints WHERE id = $1`, complaintID).Scan(&status)
	if err == pgx.ErrNoRows {
		return errors.NotFound("complaint", complaintID.String())
	}
	if err != nil {
		return errors.Wrap(err, "failed to read complaint status")
	}

	if status != domain.StatusPending {
		return errors.InvalidState("complaint is not pending assignment", string(status))
	}

	count, err := r.ActiveTaskCount(ctx, workerID)
	if err != nil {
		return err
	}

	return errors.AtCapacity(workerID.String(), count, maxTasks)
}

// SetPendingUpdate persists the aggregate's pending request, conditioned
// on no unreviewed request existing. The work timestamps are written in
// the same statement since they are stamped at request time.
func (r *PostgresRepository) SetPendingUpdate(ctx context.Context, c *domain.Complaint) error {
	if c.PendingUpdate == nil {
		return errors.Internal(fmt.Errorf("complaint %s has no pending update to persist", c.ID))
	}

	query := `
		UPDATE complaints SET
			pending_status = $2, pending_requested_by = $3,
			pending_requested_at = $4, pending_remarks = $5,
			work_started_at = $6, work_completed_at = $7,
			updated_at = $8
		WHERE id = $1 AND pending_status IS NULL`

	p := c.PendingUpdate
	result, err := r.pool.Exec(ctx, query,
		c.ID, p.RequestedStatus, p.RequestedBy, p.RequestedAt, p.Remarks,
		c.WorkStartedAt, c.WorkCompletedAt, c.UpdatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to record status change request")
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM complaints WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
			return errors.Wrap(err, "failed to check complaint existence")
		}
		if !exists {
			return errors.NotFound("complaint", c.ID.String())
		}
		return errors.DuplicateRequest(c.ID.String())
	}

	return nil
}

// CompleteReview persists a review outcome, conditioned on an unreviewed
// request existing, and appends the audit entry in the same transaction.
func (r *PostgresRepository) CompleteReview(ctx context.Context, c *domain.Complaint, entry *domain.HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE complaints SET
			status = $2,
			pending_status = NULL, pending_requested_by = NULL,
			pending_requested_at = NULL, pending_remarks = NULL,
			updated_at = $3
		WHERE id = $1 AND pending_status IS NOT NULL`

	result, err := tx.Exec(ctx, query, c.ID, c.Status, c.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to complete review")
	}

	if result.RowsAffected() == 0 {
		var status domain.Status
		err := r.pool.QueryRow(ctx, `SELECT status FROM complaints WHERE id = $1`, c.ID).Scan(&status)
		if err == pgx.ErrNoRows {
			return errors.NotFound("complaint", c.ID.String())
		}
		if err != nil {
			return errors.Wrap(err, "failed to read complaint status")
		}
		return errors.InvalidState("no status change request is pending review", string(status))
	}

	if entry != nil {
		if err := saveHistoryEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// UpdateStatus persists a direct administrative status change together
// with its history entry. Any outstanding request is cleared.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, c *domain.Complaint, entry *domain.HistoryEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE complaints SET
			status = $2,
			pending_status = NULL, pending_requested_by = NULL,
			pending_requested_at = NULL, pending_remarks = NULL,
			updated_at = $3
		WHERE id = $1`

	result, err := tx.Exec(ctx, query, c.ID, c.Status, c.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to update complaint status")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("complaint", c.ID.String())
	}

	if entry != nil {
		if err := saveHistoryEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

func (r *PostgresRepository) listComplaints(ctx context.Context, filter domain.ListFilter, extraCondition string, extraArgs []interface{}) ([]domain.Complaint, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if extraCondition != "" {
		for _, arg := range extraArgs {
			args = append(args, arg)
			extraCondition = fmt.Sprintf(extraCondition, argNum)
			argNum++
		}
		conditions = append(conditions, extraCondition)
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.ReporterID != nil {
		conditions = append(conditions, fmt.Sprintf("reporter_id = $%d", argNum))
		args = append(args, *filter.ReporterID)
		argNum++
	}

	if filter.Region != nil {
		conditions = append(conditions, fmt.Sprintf("city = $%d AND district = $%d AND pincode = $%d", argNum, argNum+1, argNum+2))
		args = append(args, filter.Region.City, filter.Region.District, filter.Region.Pincode)
		argNum += 3
	}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argNum))
		args = append(args, filter.Category)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM complaints %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count complaints")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT id, reporter_id, title, description, category,
			city, district, pincode, status,
			assigned_worker, assigned_by, assigned_at,
			work_started_at, work_completed_at,
			pending_status, pending_requested_by, pending_requested_at, pending_remarks,
			created_at, updated_at
		FROM complaints
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list complaints")
	}
	defer rows.Close()

	var complaints []domain.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan complaint")
		}
		complaints = append(complaints, *c)
	}

	return complaints, total, nil
}

func (r *PostgresRepository) getHistory(ctx context.Context, complaintID types.ID) ([]domain.HistoryEntry, error) {
	query := `
		SELECT id, complaint_id, status, actor_id, actor_type, note, created_at
		FROM complaint_status_history
		WHERE complaint_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, complaintID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get status history")
	}
	defer rows.Close()

	var history []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		err := rows.Scan(&e.ID, &e.ComplaintID, &e.Status, &e.ActorID, &e.ActorType, &e.Note, &e.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan history entry")
		}
		history = append(history, e)
	}

	return history, nil
}

func saveHistoryEntry(ctx context.Context, tx pgx.Tx, e *domain.HistoryEntry) error {
	query := `
		INSERT INTO complaint_status_history (
			id, complaint_id, status, actor_id, actor_type, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.ComplaintID, e.Status, e.ActorID, e.ActorType, e.Note, e.CreatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to save history entry")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplaint(row rowScanner) (*domain.Complaint, error) {
	c := &domain.Complaint{}
	var pendingStatus *domain.Status
	var pendingBy *types.ID
	var pendingAt *time.Time
	var pendingRemarks *string

	err := row.Scan(
		&c.ID, &c.ReporterID, &c.Title, &c.Description, &c.Category,
		&c.Region.City, &c.Region.District, &c.Region.Pincode, &c.Status,
		&c.AssignedWorker, &c.AssignedBy, &c.AssignedAt,
		&c.WorkStartedAt, &c.WorkCompletedAt,
		&pendingStatus, &pendingBy, &pendingAt, &pendingRemarks,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if pendingStatus != nil && pendingBy != nil && pendingAt != nil {
		remarks := ""
		if pendingRemarks != nil {
			remarks = *pendingRemarks
		}
		c.PendingUpdate = &domain.PendingStatusUpdate{
			RequestedStatus: *pendingStatus,
			RequestedBy:     *pendingBy,
			RequestedAt:     *pendingAt,
			Remarks:         remarks,
		}
	}

	return c, nil
}
