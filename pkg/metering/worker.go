package metering

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the subset of Outbox's behavior the Worker depends on, so tests
// can substitute a fake instead of a live Postgres pool.
type Store interface {
	ClaimBatch(ctx context.Context, workerID string, leaseWindow time.Duration, n int) ([]LedgerEvent, error)
	MarkSent(ctx context.Context, eventID uuid.UUID) error
	MarkFailed(ctx context.Context, eventID uuid.UUID, errMsg string) error
	ReleaseLease(ctx context.Context, eventID uuid.UUID) error
}

var _ Store = (*Outbox)(nil)

// Emitter sends one LedgerEvent to the downstream billing system (spec.md
// §4.9 step 2c). OPENMETER_ENABLED gates which Emitter implementation the
// caller wires in; Worker itself is billing-system-agnostic.
type Emitter interface {
	Emit(ctx context.Context, event LedgerEvent) error
}

const (
	defaultLeaseWindow  = 30 * time.Second
	defaultBatchSize    = 50
	defaultPollInterval = 2 * time.Second
)

// Worker repeatedly claims a lease on a batch of unsent events and emits
// them to the downstream billing system (spec.md §4.9 step 2). Multiple
// Workers, across processes, MAY run concurrently against the same Store.
type Worker struct {
	store        Store
	emitter      Emitter
	logger       *slog.Logger
	id           string
	leaseWindow  time.Duration
	batchSize    int
	pollInterval time.Duration
}

// NewWorker builds a Worker identified by id (used as lease_owner).
func NewWorker(store Store, emitter Emitter, logger *slog.Logger, id string) *Worker {
	return &Worker{
		store:        store,
		emitter:      emitter,
		logger:       logger,
		id:           id,
		leaseWindow:  defaultLeaseWindow,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}
}

// SetLeaseWindow overrides the default lease window (OUTBOX_LEASE_WINDOW).
func (w *Worker) SetLeaseWindow(d time.Duration) {
	if d > 0 {
		w.leaseWindow = d
	}
}

// SetBatchSize overrides the default claim batch size (OUTBOX_BATCH_SIZE).
func (w *Worker) SetBatchSize(n int) {
	if n > 0 {
		w.batchSize = n
	}
}

// SetPollInterval overrides the default poll interval (OUTBOX_POLL_INTERVAL).
func (w *Worker) SetPollInterval(d time.Duration) {
	if d > 0 {
		w.pollInterval = d
	}
}

// Run polls the Store on a timer until ctx is cancelled. On cancellation it
// stops claiming new batches and returns once the in-flight batch (if any)
// has been fully processed or released (spec.md §9 graceful shutdown).
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

// processBatch claims one batch and emits each event, releasing the lease
// on any event left unprocessed if ctx is cancelled mid-batch.
func (w *Worker) processBatch(ctx context.Context) {
	events, err := w.store.ClaimBatch(ctx, w.id, w.leaseWindow, w.batchSize)
	if err != nil {
		w.logger.Error("claiming outbox batch", "error", err, "worker_id", w.id)
		return
	}

	for i, event := range events {
		if ctx.Err() != nil {
			w.releaseRemaining(events[i:])
			return
		}
		w.emitOne(ctx, event)
	}
}

func (w *Worker) emitOne(ctx context.Context, event LedgerEvent) {
	if err := w.emitter.Emit(ctx, event); err != nil {
		if markErr := w.store.MarkFailed(ctx, event.EventID, err.Error()); markErr != nil {
			w.logger.Error("marking outbox event failed", "error", markErr, "event_id", event.EventID)
		}
		if event.Attempts+1 >= maxAttempts {
			w.logger.Warn("outbox event dead-lettered", "event_id", event.EventID, "attempts", event.Attempts+1)
		}
		return
	}
	if err := w.store.MarkSent(ctx, event.EventID); err != nil {
		w.logger.Error("marking outbox event sent", "error", err, "event_id", event.EventID)
	}
}

// releaseRemaining is called on shutdown to drop the lease on events this
// worker claimed but never got to emit, so another worker can pick them up
// immediately instead of waiting out the full lease window.
func (w *Worker) releaseRemaining(events []LedgerEvent) {
	release := context.Background()
	for _, event := range events {
		if err := w.store.ReleaseLease(release, event.EventID); err != nil {
			w.logger.Error("releasing outbox lease on shutdown", "error", err, "event_id", event.EventID)
		}
	}
}
