package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tenantColumns = `id, name, plan, quota_limit, created_at`

// Row is the raw database representation of a tenant.
type Row struct {
	ID         uuid.UUID
	Name       string
	Plan       string
	QuotaLimit int64
	CreatedAt  any
}

// Store provides database operations for tenants using the global pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(&r.ID, &r.Name, &r.Plan, &r.QuotaLimit, &r.CreatedAt)
	return r, err
}

// Get fetches a tenant by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Row, error) {
	query := `SELECT ` + tenantColumns + ` FROM public.tenants WHERE id = $1`
	row, err := scanRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return Row{}, fmt.Errorf("getting tenant: %w", err)
	}
	return row, nil
}

// Create inserts a new tenant.
func (s *Store) Create(ctx context.Context, name, plan string, quotaLimit int64) (Row, error) {
	query := `INSERT INTO public.tenants (name, plan, quota_limit) VALUES ($1, $2, $3) RETURNING ` + tenantColumns
	row, err := scanRow(s.pool.QueryRow(ctx, query, name, plan, quotaLimit))
	if err != nil {
		return Row{}, fmt.Errorf("creating tenant: %w", err)
	}
	return row, nil
}
