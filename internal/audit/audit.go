// Package audit implements the audit log half of spec.md §4.9: a direct,
// fire-and-forget insert per tool-call attempt. A write failure is logged
// but never fails the request.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one audit log row (spec.md §6 persisted state:
// mcpgate_audit_log{tenant_id, api_key_id, server_id, tool_name, args_hash,
// status, error_message, duration_ms, created_at}).
type Entry struct {
	TenantID     uuid.UUID
	APIKeyID     uuid.UUID
	ServerID     string
	ToolName     string
	ArgsHash     string
	Status       string
	ErrorMessage string
	DurationMs   int64
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer is an async, buffered audit log writer: Log never blocks the
// caller, and a background goroutine drains the buffer on a timer or once
// it fills, writing one row per entry (spec.md's "direct insert per call
// attempt" — batching here is a round-trip optimization, not aggregation;
// every entry still becomes exactly one row).
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

// NewWriter creates an audit Writer. Call Start to begin processing entries.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:    pool,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start launches the background goroutine that flushes audit entries to the
// database and returns immediately. The goroutine flushes what is pending
// and exits when the context is cancelled or Close is called.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an audit entry for async writing. It never blocks the
// caller; if the buffer is full the entry is dropped and a warning is
// logged (spec.md §7: "Outbox/audit write failures are logged and never
// fail the request").
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry",
			"server_id", entry.ServerID, "tool_name", entry.ToolName)
	}
}

// LogCall builds and enqueues an Entry for one tool-call attempt — the
// call site the Tool Router and Chain Executor use once the terminal
// status of the call is known (spec.md §5: "Audit writes for a single
// call happen-after the terminal status is known").
func (w *Writer) LogCall(tenantID, apiKeyID uuid.UUID, serverID, toolName string, args map[string]any, status string, errMsg string, durationMs int64) {
	w.Log(Entry{
		TenantID:     tenantID,
		APIKeyID:     apiKeyID,
		ServerID:     serverID,
		ToolName:     toolName,
		ArgsHash:     HashArgs(args),
		Status:       status,
		ErrorMessage: errMsg,
		DurationMs:   durationMs,
	})
}

// HashArgs returns a hex-encoded SHA-256 digest of args' canonical JSON
// encoding, so the audit log can correlate repeated calls without storing
// potentially sensitive argument payloads verbatim.
func HashArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	b, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)
}

// run is the background loop that drains the entries channel.
func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flush writes a batch of entries to the database, one row per entry.
func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		_, err := w.pool.Exec(ctx, `
			INSERT INTO public.mcpgate_audit_log
				(tenant_id, api_key_id, server_id, tool_name, args_hash, status, error_message, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.TenantID, e.APIKeyID, e.ServerID, e.ToolName, e.ArgsHash, e.Status, nullableString(e.ErrorMessage), e.DurationMs,
		)
		if err != nil {
			w.logger.Error("writing audit log entry", "error", err,
				"server_id", e.ServerID, "tool_name", e.ToolName)
		}
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
