package apikey

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const apiKeyColumns = `id, tenant_id, key_hash, key_prefix, description, scopes, last_used, created_at`

// Store provides database operations for API keys using the global pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an API key Store backed by the given global connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateParams holds parameters for creating an API key.
type CreateParams struct {
	TenantID    uuid.UUID
	KeyHash     string
	KeyPrefix   string
	Description string
	Scopes      []string
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(
		&r.ID, &r.TenantID, &r.KeyHash, &r.KeyPrefix, &r.Description,
		&r.Scopes, &r.LastUsed, &r.CreatedAt,
	)
	return r, err
}

func scanRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()
	var items []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(
			&r.ID, &r.TenantID, &r.KeyHash, &r.KeyPrefix, &r.Description,
			&r.Scopes, &r.LastUsed, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api key rows: %w", err)
	}
	return items, nil
}

// List returns all API keys for the given tenant.
func (s *Store) List(ctx context.Context, tenantID uuid.UUID) ([]Row, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM public.api_keys WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	return scanRows(rows)
}

// Create inserts a new API key and returns the created row.
func (s *Store) Create(ctx context.Context, p CreateParams) (Row, error) {
	query := `INSERT INTO public.api_keys (tenant_id, key_hash, key_prefix, description, scopes)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + apiKeyColumns

	row := s.pool.QueryRow(ctx, query,
		p.TenantID, p.KeyHash, p.KeyPrefix, p.Description, p.Scopes,
	)
	return scanRow(row)
}

// GetByHash looks up an API key by its SHA-256 hash. Used on the request
// path by the ingress gate (spec.md §4.1 resolve).
func (s *Store) GetByHash(ctx context.Context, hash string) (Row, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM public.api_keys WHERE key_hash = $1`
	return scanRow(s.pool.QueryRow(ctx, query, hash))
}

// UpdateLastUsed bumps last_used to now(). Fire-and-forget from the caller.
func (s *Store) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE public.api_keys SET last_used = now() WHERE id = $1`, id)
	return err
}

// Delete permanently removes an API key by ID.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM public.api_keys WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
