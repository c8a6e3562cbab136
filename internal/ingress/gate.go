package ingress

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/pkg/apikey"
	"github.com/wardenmcp/toolgate/pkg/tenant"
)

var errMissingIdentity = apierr.New(apierr.Internal, "missing identity: Authenticate must run before PolicyAndQuota")

// Gate implements the Ingress Gate's four operations (spec.md §4.1).
type Gate struct {
	keys    *apikey.Store
	tenants *tenant.Store
	quota   *QuotaGate
	policy  *PolicyGate
}

// NewGate wires the Ingress Gate against its persistence and quota dependencies.
func NewGate(keys *apikey.Store, tenants *tenant.Store, quota *QuotaGate, policy *PolicyGate) *Gate {
	return &Gate{keys: keys, tenants: tenants, quota: quota, policy: policy}
}

// Resolve extracts the bearer token from the Authorization header and looks
// it up by exact match (spec.md §4.1: resolve(request) → ApiKey).
func (g *Gate) Resolve(ctx context.Context, r *http.Request) (apikey.Row, error) {
	header := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return apikey.Row{}, apierr.New(apierr.Unauthenticated, "Missing API key")
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return apikey.Row{}, apierr.New(apierr.Unauthenticated, "Missing API key")
	}

	hash := apikey.HashAPIKey(token)
	key, err := g.keys.GetByHash(ctx, hash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apikey.Row{}, apierr.New(apierr.Unauthenticated, "Invalid API key")
		}
		return apikey.Row{}, apierr.New(apierr.Internal, "resolving API key")
	}

	go func() { _ = g.keys.UpdateLastUsed(context.Background(), key.ID) }()

	return key, nil
}

// EnforceScope reports whether key is allowed to call toolName on serverID
// (spec.md §4.1: enforceScope).
func (g *Gate) EnforceScope(key apikey.Row, serverID, toolName string) bool {
	return key.AllowsScope(serverID, toolName)
}

// EnforcePolicy consults the tenant's plan for the given route (spec.md §4.1:
// enforcePolicy).
func (g *Gate) EnforcePolicy(ctx context.Context, tenantID uuid.UUID, route string) error {
	t, err := g.tenants.Get(ctx, tenantID)
	if err != nil {
		return apierr.New(apierr.Internal, "resolving tenant plan")
	}
	return g.policy.Check(t.Plan, route)
}

// AssertWithinQuota atomically tests-and-increments the tenant's usage
// counter (spec.md §4.1: assertWithinQuota).
func (g *Gate) AssertWithinQuota(ctx context.Context, tenantID uuid.UUID) error {
	t, err := g.tenants.Get(ctx, tenantID)
	if err != nil {
		return apierr.New(apierr.Internal, "resolving tenant quota")
	}
	return g.quota.AssertAndIncrement(ctx, tenantID, t.QuotaLimit)
}
