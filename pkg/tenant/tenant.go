// Package tenant carries the resolved tenant for the lifetime of a request.
//
// Tenancy in this repo is row-per-tenant: every tenant-scoped table carries
// an owner/tenant_id column and queries run against a single schema. There is
// no schema-switching or connection-scoped search_path to manage, so this
// package holds only a context carrier (NewContext/FromContext) and a Store
// over the tenants table. The ingress gate reads tenants through the Store;
// nothing in this repository calls NewContext.
package tenant

import (
	"context"

	"github.com/google/uuid"
)

// Info holds the resolved tenant for the current request.
type Info struct {
	ID   uuid.UUID
	Name string
	Plan string
}

type contextKey string

const infoKey contextKey = "tenant_info"

// NewContext stores tenant info in the context.
func NewContext(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, infoKey, info)
}

// FromContext extracts the tenant info from the context.
// Returns nil if no tenant is set.
func FromContext(ctx context.Context) *Info {
	v, _ := ctx.Value(infoKey).(*Info)
	return v
}
