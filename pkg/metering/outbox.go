// Package metering implements the Metering Outbox half of spec.md §4.9: a
// lease-based, at-least-once billing-event queue backed by
// openmeter_event_ledger.
package metering

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxAttempts is the permanent dead-letter threshold (spec.md §4.9: "At
// attempts = 10 the row is permanently dead-lettered").
const maxAttempts = 10

// LedgerEvent is one row of openmeter_event_ledger (spec.md §6).
type LedgerEvent struct {
	EventID    uuid.UUID
	TenantID   uuid.UUID
	ServerID   string
	ToolName   string
	StatusBucket string // e.g. "success", "error", "timeout" (spec.md §5)
	DurationMs int64
	CreatedAt  time.Time
	Attempts   int
	LastError  string
}

// Outbox writes and claims LedgerEvent rows against Postgres.
type Outbox struct {
	pool *pgxpool.Pool
}

// NewOutbox builds an Outbox over pool.
func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

// Enqueue inserts a new row with sent_at=null, attempts=0, lease_until=null
// (spec.md §4.9 step 1). EventID is generated here so the caller can log it
// alongside the tool call it bills.
func (o *Outbox) Enqueue(ctx context.Context, event LedgerEvent) (uuid.UUID, error) {
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	_, err := o.pool.Exec(ctx, `
		INSERT INTO public.openmeter_event_ledger
			(event_id, tenant_id, server_id, tool_name, status_bucket, duration_ms, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		event.EventID, event.TenantID, event.ServerID, event.ToolName, event.StatusBucket, event.DurationMs,
	)
	return event.EventID, err
}

// ClaimBatch selects up to n unsent, non-dead-lettered, unleased-or-expired
// rows and leases them to workerID for leaseWindow (spec.md §4.9 steps
// 2a/2b). `FOR UPDATE SKIP LOCKED` lets multiple workers run against the
// same table without blocking each other, grounded on the
// SELECT-then-lease idiom in Mindburn-Labs-helm's
// `PostgresLedger.AcquireNextPending`.
func (o *Outbox) ClaimBatch(ctx context.Context, workerID string, leaseWindow time.Duration, n int) ([]LedgerEvent, error) {
	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT event_id, tenant_id, server_id, tool_name, status_bucket, duration_ms, created_at, attempts
		FROM public.openmeter_event_ledger
		WHERE sent_at IS NULL AND attempts < $1 AND (lease_until IS NULL OR lease_until < now())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, maxAttempts, n)
	if err != nil {
		return nil, err
	}
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]uuid.UUID, len(events))
	for i, e := range events {
		ids[i] = e.EventID
	}
	leaseUntil := time.Now().Add(leaseWindow)
	if _, err := tx.Exec(ctx, `
		UPDATE public.openmeter_event_ledger
		SET lease_until = $1, lease_owner = $2
		WHERE event_id = ANY($3)`, leaseUntil, workerID, ids); err != nil {
		return nil, err
	}

	return events, tx.Commit(ctx)
}

// MarkSent records successful downstream delivery (spec.md §4.9 step 2c/2d).
func (o *Outbox) MarkSent(ctx context.Context, eventID uuid.UUID) error {
	_, err := o.pool.Exec(ctx, `
		UPDATE public.openmeter_event_ledger SET sent_at = now(), lease_until = NULL, lease_owner = NULL
		WHERE event_id = $1`, eventID)
	return err
}

// MarkFailed increments attempts, stores the error, and clears the lease
// (spec.md §4.9 step 2d). At attempts = maxAttempts the row's WHERE clause
// in ClaimBatch naturally excludes it from future claims — it is
// permanently dead-lettered without a separate status column.
func (o *Outbox) MarkFailed(ctx context.Context, eventID uuid.UUID, errMsg string) error {
	_, err := o.pool.Exec(ctx, `
		UPDATE public.openmeter_event_ledger
		SET attempts = attempts + 1, last_error = $2, lease_until = NULL, lease_owner = NULL
		WHERE event_id = $1`, eventID, errMsg)
	return err
}

// ReleaseLease clears the lease on a row without touching its attempts
// count, for graceful shutdown (spec.md §9: "Any worker MUST release its
// lease on graceful shutdown").
func (o *Outbox) ReleaseLease(ctx context.Context, eventID uuid.UUID) error {
	_, err := o.pool.Exec(ctx, `
		UPDATE public.openmeter_event_ledger SET lease_until = NULL, lease_owner = NULL
		WHERE event_id = $1`, eventID)
	return err
}

func scanEvents(rows pgx.Rows) ([]LedgerEvent, error) {
	defer rows.Close()
	var events []LedgerEvent
	for rows.Next() {
		var e LedgerEvent
		if err := rows.Scan(&e.EventID, &e.TenantID, &e.ServerID, &e.ToolName, &e.StatusBucket, &e.DurationMs, &e.CreatedAt, &e.Attempts); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
