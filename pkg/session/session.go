// Package session implements Session Budgets (spec.md §4.5): an in-memory
// budget envelope for a run of tool calls by one agent. A gateway restart
// clears all sessions — agents are expected to re-create them.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a Session's lifecycle state (spec.md §3 Session).
type Status string

const (
	StatusActive    Status = "active"
	StatusExhausted Status = "exhausted"
	StatusExpired   Status = "expired"
	StatusClosed    Status = "closed"
)

// Budget is the immutable policy a Session enforces (spec.md §3 SessionBudget).
type Budget struct {
	MaxToolCalls   *int
	MaxDurationMs  *int64
	MaxCostUSD     *float64
	AllowedServers []string
	DeniedTools    []string
	ExpiresAt      *time.Time
}

// Usage is a Session's running totals.
type Usage struct {
	ToolCalls int
	CostUSD   float64
}

// Session is a budget envelope for one agent run.
type Session struct {
	ID        string
	TenantID  uuid.UUID
	AgentID   string
	Budget    Budget
	Usage     Usage
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Code enumerates the enforce() denial codes from spec.md §4.5.
type Code string

const (
	CodeSessionNotFound        Code = "SESSION_NOT_FOUND"
	CodeSessionClosed          Code = "SESSION_CLOSED"
	CodeSessionExpired         Code = "SESSION_EXPIRED"
	CodeBudgetCallsExceeded    Code = "BUDGET_CALLS_EXCEEDED"
	CodeBudgetDurationExceeded Code = "BUDGET_DURATION_EXCEEDED"
	CodeBudgetCostExceeded     Code = "BUDGET_COST_EXCEEDED"
	CodeServerNotAllowed       Code = "SERVER_NOT_ALLOWED"
	CodeToolDenied             Code = "TOOL_DENIED"
)

// Decision is the result of enforce().
type Decision struct {
	Allowed bool
	Code    Code
	Reason  string
}

// Store holds every live session in memory, guarded by a single mutex —
// sessions are low-cardinality and short-lived relative to request latency,
// so a single lock is not a contention concern at the scale spec.md §5 targets.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore builds an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create generates a sess_-prefixed id and an active Session.
func (s *Store) Create(tenantID uuid.UUID, budget Budget, agentID string) *Session {
	now := time.Now()
	sess := &Session{
		ID:        generateID(),
		TenantID:  tenantID,
		AgentID:   agentID,
		Budget:    budget,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

// Get returns the session by id, or (nil, false) if unknown.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Enforce checks sid against serverID/toolName in the exact order spec.md
// §4.5 lists, returning the first violation or {Allowed: true}.
func (s *Store) Enforce(sid, serverID, toolName string) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return Decision{Code: CodeSessionNotFound, Reason: "session not found"}
	}

	if sess.Status == StatusClosed {
		return Decision{Code: CodeSessionClosed, Reason: "session is closed"}
	}
	if sess.Status == StatusExhausted {
		return Decision{Code: CodeBudgetCallsExceeded, Reason: "session budget exhausted"}
	}

	now := time.Now()
	b := sess.Budget

	if b.ExpiresAt != nil && now.After(*b.ExpiresAt) {
		sess.Status = StatusExpired
		sess.UpdatedAt = now
		return Decision{Code: CodeSessionExpired, Reason: "session expired"}
	}

	if b.MaxDurationMs != nil && now.Sub(sess.CreatedAt).Milliseconds() > *b.MaxDurationMs {
		sess.Status = StatusExpired
		sess.UpdatedAt = now
		return Decision{Code: CodeBudgetDurationExceeded, Reason: "session duration budget exceeded"}
	}

	if b.MaxToolCalls != nil && sess.Usage.ToolCalls >= *b.MaxToolCalls {
		sess.Status = StatusExhausted
		sess.UpdatedAt = now
		return Decision{Code: CodeBudgetCallsExceeded, Reason: "tool-call budget exceeded"}
	}

	if b.MaxCostUSD != nil && sess.Usage.CostUSD >= *b.MaxCostUSD {
		sess.Status = StatusExhausted
		sess.UpdatedAt = now
		return Decision{Code: CodeBudgetCostExceeded, Reason: "cost budget exceeded"}
	}

	if len(b.AllowedServers) > 0 && !contains(b.AllowedServers, serverID) {
		return Decision{Code: CodeServerNotAllowed, Reason: "server not in allowed_servers"}
	}

	if contains(b.DeniedTools, toolName) {
		return Decision{Code: CodeToolDenied, Reason: "tool is denied for this session"}
	}

	return Decision{Allowed: true}
}

// RecordUsage bumps tool_calls by 1 and cost_usd by cost. Called only on
// successful dispatch.
func (s *Store) RecordUsage(sid string, cost float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return
	}
	sess.Usage.ToolCalls++
	sess.Usage.CostUSD += cost
	sess.UpdatedAt = time.Now()
}

// Close sets sid's status to closed. Idempotent.
func (s *Store) Close(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return
	}
	sess.Status = StatusClosed
	sess.UpdatedAt = time.Now()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func generateID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return "sess_" + hex.EncodeToString(b[:])
}
