package metering

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeStore struct {
	claimed    []LedgerEvent
	sent       []uuid.UUID
	failed     []uuid.UUID
	released   []uuid.UUID
	claimErr   error
	claimCalls int
}

func (f *fakeStore) ClaimBatch(ctx context.Context, workerID string, leaseWindow time.Duration, n int) ([]LedgerEvent, error) {
	f.claimCalls++
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	batch := f.claimed
	f.claimed = nil
	return batch, nil
}

func (f *fakeStore) MarkSent(ctx context.Context, eventID uuid.UUID) error {
	f.sent = append(f.sent, eventID)
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, eventID uuid.UUID, errMsg string) error {
	f.failed = append(f.failed, eventID)
	return nil
}

func (f *fakeStore) ReleaseLease(ctx context.Context, eventID uuid.UUID) error {
	f.released = append(f.released, eventID)
	return nil
}

type fakeEmitter struct {
	failFor map[uuid.UUID]bool
	emitted []uuid.UUID
}

func (f *fakeEmitter) Emit(ctx context.Context, event LedgerEvent) error {
	f.emitted = append(f.emitted, event.EventID)
	if f.failFor[event.EventID] {
		return errors.New("downstream billing system rejected event")
	}
	return nil
}

func newTestWorker(store Store, emitter Emitter) *Worker {
	return NewWorker(store, emitter, slog.Default(), "worker-1")
}

func TestProcessBatch_EmitsAndMarksSent(t *testing.T) {
	e1 := LedgerEvent{EventID: uuid.New()}
	e2 := LedgerEvent{EventID: uuid.New()}
	store := &fakeStore{claimed: []LedgerEvent{e1, e2}}
	emitter := &fakeEmitter{}
	w := newTestWorker(store, emitter)

	w.processBatch(context.Background())

	if len(store.sent) != 2 {
		t.Fatalf("sent = %v, want 2 events marked sent", store.sent)
	}
	if len(store.failed) != 0 {
		t.Errorf("failed = %v, want none", store.failed)
	}
}

func TestProcessBatch_EmitFailureMarksFailedNotSent(t *testing.T) {
	e1 := LedgerEvent{EventID: uuid.New()}
	store := &fakeStore{claimed: []LedgerEvent{e1}}
	emitter := &fakeEmitter{failFor: map[uuid.UUID]bool{e1.EventID: true}}
	w := newTestWorker(store, emitter)

	w.processBatch(context.Background())

	if len(store.failed) != 1 || store.failed[0] != e1.EventID {
		t.Errorf("failed = %v, want [%v]", store.failed, e1.EventID)
	}
	if len(store.sent) != 0 {
		t.Errorf("sent = %v, want none", store.sent)
	}
}

func TestProcessBatch_ClaimErrorIsLoggedNotPanicked(t *testing.T) {
	store := &fakeStore{claimErr: errors.New("db unavailable")}
	emitter := &fakeEmitter{}
	w := newTestWorker(store, emitter)

	w.processBatch(context.Background())

	if len(emitter.emitted) != 0 {
		t.Errorf("emitted = %v, want none after a claim error", emitter.emitted)
	}
}

func TestProcessBatch_CancelledContextReleasesRemaining(t *testing.T) {
	e1 := LedgerEvent{EventID: uuid.New()}
	e2 := LedgerEvent{EventID: uuid.New()}
	store := &fakeStore{claimed: []LedgerEvent{e1, e2}}
	emitter := &fakeEmitter{}
	w := newTestWorker(store, emitter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled before processBatch even emits the first event

	w.processBatch(ctx)

	if len(store.released) != 2 {
		t.Errorf("released = %v, want both events released on cancellation", store.released)
	}
	if len(store.sent) != 0 || len(emitter.emitted) != 0 {
		t.Errorf("no events should have been emitted once ctx was cancelled")
	}
}

func TestRun_StopsOnContextCancellation(t *testing.T) {
	store := &fakeStore{}
	emitter := &fakeEmitter{}
	w := newTestWorker(store, emitter)
	w.pollInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
