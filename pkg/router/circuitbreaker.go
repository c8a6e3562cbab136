package router

import (
	"sync"
	"time"
)

// CircuitState is the lifecycle state of one server's breaker (spec.md §3
// CircuitState, §4.4.2).
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

type breakerEntry struct {
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
}

// CircuitBreaker tracks per-server_id breaker state (spec.md §4.4.2). The
// breaker is keyed solely by server_id; sharing across tenants is
// intentional because the upstream endpoint is the same.
type CircuitBreaker struct {
	mu               sync.Mutex
	entries          map[string]*breakerEntry
	failureThreshold int
	cooldown         time.Duration
}

// NewCircuitBreaker builds a breaker with the spec's default threshold (5
// consecutive failures) and cooldown (30s).
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		entries:          make(map[string]*breakerEntry),
		failureThreshold: defaultFailureThreshold,
		cooldown:         defaultCooldown,
	}
}

func (b *CircuitBreaker) entry(serverID string) *breakerEntry {
	e, ok := b.entries[serverID]
	if !ok {
		e = &breakerEntry{state: CircuitClosed}
		b.entries[serverID] = e
	}
	return e
}

// Allow reports whether a call to serverID may proceed, transitioning
// open→half_open when the cooldown has elapsed.
func (b *CircuitBreaker) Allow(serverID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.entry(serverID)
	switch e.state {
	case CircuitOpen:
		if time.Since(e.openedAt) >= b.cooldown {
			e.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess resets the breaker to closed.
func (b *CircuitBreaker) RecordSuccess(serverID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.entry(serverID)
	e.state = CircuitClosed
	e.consecutiveFailures = 0
}

// RecordFailure increments the failure count and opens the breaker when the
// threshold is reached, or immediately re-opens a half_open breaker.
func (b *CircuitBreaker) RecordFailure(serverID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.entry(serverID)
	if e.state == CircuitHalfOpen {
		e.state = CircuitOpen
		e.openedAt = time.Now()
		return
	}

	e.consecutiveFailures++
	if e.consecutiveFailures >= b.failureThreshold {
		e.state = CircuitOpen
		e.openedAt = time.Now()
	}
}

// State returns the current breaker state for serverID.
func (b *CircuitBreaker) State(serverID string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entry(serverID).state
}
