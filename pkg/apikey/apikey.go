package apikey

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreateRequest is the input to Service.Create. No HTTP route in this
// repository decodes it.
//
// Scopes is nullable: omitted or null means allow-all (spec.md §3, ApiKey).
// When present, each entry is a "server:tool" pattern (exact, or "server:*",
// "*:tool", "*").
type CreateRequest struct {
	Description string   `json:"description" validate:"required"`
	Scopes      []string `json:"scopes"`
}

// Response is the JSON response for a single API key (without the raw key).
type Response struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	KeyPrefix   string     `json:"key_prefix"`
	Description string     `json:"description"`
	Scopes      []string   `json:"scopes"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateResponse includes the raw key (only shown once at creation).
type CreateResponse struct {
	Response
	RawKey string `json:"raw_key"`
}

// Row represents a row returned from the public.api_keys table.
type Row struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	KeyHash     string
	KeyPrefix   string
	Description string
	Scopes      []string // nil == allow-all
	LastUsed    pgtype.Timestamptz
	CreatedAt   time.Time
}

// ToResponse converts a Row to a Response DTO.
func (r *Row) ToResponse() Response {
	resp := Response{
		ID:          r.ID,
		TenantID:    r.TenantID,
		KeyPrefix:   r.KeyPrefix,
		Description: r.Description,
		Scopes:      r.Scopes,
		CreatedAt:   r.CreatedAt,
	}
	if r.LastUsed.Valid {
		t := r.LastUsed.Time
		resp.LastUsed = &t
	}
	return resp
}

// AllowsScope reports whether the key's scopes permit calling toolName on
// serverID, per spec.md §4.1 enforceScope: null scopes allow everything;
// otherwise any of exact "server:tool", "server:*", "*:tool", "*" matches.
func (r *Row) AllowsScope(serverID, toolName string) bool {
	if r.Scopes == nil {
		return true
	}
	exact := serverID + ":" + toolName
	serverWild := serverID + ":*"
	toolWild := "*:" + toolName
	for _, pattern := range r.Scopes {
		switch pattern {
		case exact, serverWild, toolWild, "*":
			return true
		}
	}
	return false
}
