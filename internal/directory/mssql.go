package directory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver

	"github.com/fixmycity/platform/internal/shared/config"
	"github.com/fixmycity/platform/internal/shared/errors"
	"github.com/fixmycity/platform/internal/shared/types"
)

// Client resolves reporters from the municipal citizen registry, a
// legacy SQL Server system owned by another department.
type Client struct {
	db *sql.DB
}

// NewClient connects to the citizen registry.
func NewClient(ctx context.Context, cfg config.DirectoryConfig) (*Client, error) {
	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)

	if cfg.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open citizen registry: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping citizen registry: %w", err)
	}

	return &Client{db: db}, nil
}

// GetReporter fetches a citizen's identity and region.
func (c *Client) GetReporter(ctx context.Context, id types.ID) (*Reporter, error) {
	query := `
		SELECT CitizenID, FullName, Email, City, District, Pincode
		FROM dbo.Citizens
		WHERE CitizenID = @id`

	row := c.db.QueryRowContext(ctx, query, sql.Named("id", id.String()))

	var r Reporter
	var email sql.NullString

	err := row.Scan(&r.ID, &r.Name, &email, &r.Region.City, &r.Region.District, &r.Region.Pincode)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("reporter", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch reporter")
	}

	if email.Valid {
		r.Email = email.String
	}

	return &r, nil
}

// Health checks registry connectivity.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the registry connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// Verify interface implementation
var _ Service = (*Client)(nil)
