package ingress

import (
	"github.com/wardenmcp/toolgate/internal/apierr"
)

// PolicyGate implements enforcePolicy (spec.md §4.1): "consults the tenant
// plan; on violation fails with a status-coded error (403 or 429)." Policy is
// expressed as a static, per-plan deny-list of route names rather than a
// dynamic rules engine — the gateway has no policy-authoring endpoint, so a
// fixed table grounded in the plans the seed/provisioning path actually
// creates is sufficient.
type PolicyGate struct {
	denied map[string]map[string]bool
}

// Default plans. "dev" and "enterprise" have no restrictions; "free" may not
// register remote tool servers or run chains, reserving those features for
// paying tenants.
const (
	PlanFree       = "free"
	PlanDev        = "dev"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// RouteRegisterServer and friends name the routes a PolicyGate can gate on.
// Callers pass one of these as the route argument to Check.
const (
	RouteRegisterServer = "register_server"
	RouteExecuteChain   = "execute_chain"
)

// NewPolicyGate builds the default plan policy table.
func NewPolicyGate() *PolicyGate {
	return &PolicyGate{
		denied: map[string]map[string]bool{
			PlanFree: {
				RouteRegisterServer: true,
				RouteExecuteChain:   true,
			},
		},
	}
}

// Check fails with FORBIDDEN_POLICY if plan denies route. An unknown plan is
// treated as unrestricted rather than denied, since the caller has already
// been authenticated and a plan-table miss should not mask a real tenant's
// request behind a policy error.
func (p *PolicyGate) Check(plan, route string) error {
	if routes, ok := p.denied[plan]; ok && routes[route] {
		return apierr.New(apierr.ForbiddenPolicy, "feature disabled for this plan")
	}
	return nil
}
