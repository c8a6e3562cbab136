package passport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const passportColumns = `id, type, owner, name, description, metadata, tags, status, created_at, updated_at`

// Store provides database operations for passports using the global pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a passport Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanRow(row pgx.Row) (Passport, error) {
	var p Passport
	var metadataJSON []byte
	if err := row.Scan(
		&p.ID, &p.Type, &p.Owner, &p.Name, &p.Description,
		&metadataJSON, &p.Tags, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return Passport{}, err
	}
	if err := unmarshalMetadata(metadataJSON, &p); err != nil {
		return Passport{}, err
	}
	return p, nil
}

func scanRows(rows pgx.Rows) ([]Passport, error) {
	defer rows.Close()
	var items []Passport
	for rows.Next() {
		var p Passport
		var metadataJSON []byte
		if err := rows.Scan(
			&p.ID, &p.Type, &p.Owner, &p.Name, &p.Description,
			&metadataJSON, &p.Tags, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning passport row: %w", err)
		}
		if err := unmarshalMetadata(metadataJSON, &p); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passport rows: %w", err)
	}
	return items, nil
}

func unmarshalMetadata(raw []byte, p *Passport) error {
	if len(raw) == 0 {
		p.Metadata = map[string]any{}
		return nil
	}
	if err := json.Unmarshal(raw, &p.Metadata); err != nil {
		return fmt.Errorf("unmarshaling passport metadata: %w", err)
	}
	return nil
}

// CreateParams holds parameters for creating a passport.
type CreateParams struct {
	Type        Type
	Owner       string
	Name        string
	Description string
	Metadata    map[string]any
	Tags        []string
}

// Create inserts a new passport with a freshly generated id and status=active.
func (s *Store) Create(ctx context.Context, p CreateParams) (Passport, error) {
	metadataJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return Passport{}, fmt.Errorf("marshaling passport metadata: %w", err)
	}

	query := `INSERT INTO public.passports (id, type, owner, name, description, metadata, tags, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING ` + passportColumns

	row := s.pool.QueryRow(ctx, query,
		generateID(), p.Type, p.Owner, p.Name, p.Description, metadataJSON, p.Tags, StatusActive,
	)
	return scanRow(row)
}

// Get returns a passport by id regardless of status (spec.md I2: "Get may
// return it" even when revoked).
func (s *Store) Get(ctx context.Context, id string) (Passport, error) {
	query := `SELECT ` + passportColumns + ` FROM public.passports WHERE id = $1`
	return scanRow(s.pool.QueryRow(ctx, query, id))
}

// Filters holds the list filter parameters (spec.md §4.2 list).
type Filters struct {
	Type   Type   // empty = any
	Owner  string // mandatory for tenant-scoped calls; empty = any (system/admin use)
	Search string // substring match against name/description
	Status Status // empty = any (callers exclude revoked explicitly for I2)
}

// List returns passports matching filters, sorted by created_at desc, along
// with the total row count for pagination.
func (s *Store) List(ctx context.Context, f Filters, limit, offset int) ([]Passport, int, error) {
	where, args := buildWhere(f)

	countQuery := fmt.Sprintf(`SELECT count(*) FROM public.passports WHERE %s`, where)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting passports: %w", err)
	}

	// limit<=0 means "no limit" (callers building a system-wide view, e.g.
	// pkg/discovery's catalog index) rather than LIMIT 0, which Postgres
	// reads literally as zero rows.
	argN := len(args) + 1
	var query string
	if limit <= 0 {
		query = fmt.Sprintf(
			`SELECT %s FROM public.passports WHERE %s ORDER BY created_at DESC OFFSET $%d`,
			passportColumns, where, argN,
		)
		args = append(args, offset)
	} else {
		query = fmt.Sprintf(
			`SELECT %s FROM public.passports WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			passportColumns, where, argN, argN+1,
		)
		args = append(args, limit, offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing passports: %w", err)
	}
	items, err := scanRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func buildWhere(f Filters) (string, []any) {
	where := "1=1"
	var args []any
	argN := 1

	if f.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", argN)
		args = append(args, f.Type)
		argN++
	}
	if f.Owner != "" {
		where += fmt.Sprintf(" AND owner = $%d", argN)
		args = append(args, f.Owner)
		argN++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, f.Status)
		argN++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", argN, argN)
		args = append(args, "%"+f.Search+"%")
		argN++
	}

	return where, args
}

// UpdatePatch holds the editable fields of a passport update.
type UpdatePatch struct {
	Name        *string
	Description *string
	Metadata    map[string]any // nil means "leave unchanged"
	Tags        []string       // nil means "leave unchanged"
}

// Update applies patch to the passport identified by id and returns the
// updated row.
func (s *Store) Update(ctx context.Context, id string, patch UpdatePatch) (Passport, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Passport{}, err
	}

	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Description != nil {
		current.Description = *patch.Description
	}
	if patch.Metadata != nil {
		current.Metadata = patch.Metadata
	}
	if patch.Tags != nil {
		current.Tags = patch.Tags
	}

	metadataJSON, err := json.Marshal(current.Metadata)
	if err != nil {
		return Passport{}, fmt.Errorf("marshaling passport metadata: %w", err)
	}

	query := `UPDATE public.passports
	SET name = $2, description = $3, metadata = $4, tags = $5, updated_at = now()
	WHERE id = $1
	RETURNING ` + passportColumns

	row := s.pool.QueryRow(ctx, query, id, current.Name, current.Description, metadataJSON, current.Tags)
	return scanRow(row)
}

// UpdateMetadataField merges a single top-level metadata key, leaving the
// rest of metadata and every other column untouched (used by updateTools).
func (s *Store) UpdateMetadataField(ctx context.Context, id, key string, value any) (Passport, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Passport{}, err
	}
	if current.Metadata == nil {
		current.Metadata = map[string]any{}
	}
	current.Metadata[key] = value

	metadataJSON, err := json.Marshal(current.Metadata)
	if err != nil {
		return Passport{}, fmt.Errorf("marshaling passport metadata: %w", err)
	}

	query := `UPDATE public.passports SET metadata = $2, updated_at = now() WHERE id = $1 RETURNING ` + passportColumns
	row := s.pool.QueryRow(ctx, query, id, metadataJSON)
	return scanRow(row)
}

// Delete soft-deletes a passport by setting status=revoked (spec.md §4.2
// delete). Idempotent: revoking an already-revoked passport is not an error,
// and neither is an id that matches no row.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := `UPDATE public.passports SET status = $2, updated_at = now() WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, StatusRevoked)
	if err != nil {
		return fmt.Errorf("revoking passport: %w", err)
	}
	return nil
}
