// Package ingress implements the Ingress Gate (spec.md §4.1): resolving and
// authorizing every inbound request before any downstream work runs.
package ingress

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the resolved caller for the lifetime of one request.
type Identity struct {
	APIKeyID uuid.UUID
	TenantID uuid.UUID
	Scopes   []string // nil == allow-all, see apikey.Row.AllowsScope
}

type contextKey string

const identityKey contextKey = "ingress_identity"

// NewContext stores the identity in the context.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity from the context. Returns nil if unset.
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}
