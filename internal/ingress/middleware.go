package ingress

import (
	"net/http"

	"github.com/wardenmcp/toolgate/internal/httpserver"
)

// Authenticate resolves the caller's API key and stores the resulting
// Identity in the request context. It is the "Auth" stage of spec.md §4.1's
// strict Auth → Policy → Quota → Schema-validate → RBAC ordering and must be
// mounted before PolicyAndQuota on every authenticated route.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := g.Resolve(r.Context(), r)
		if err != nil {
			httpserver.RespondAPIErr(w, err)
			return
		}

		identity := &Identity{
			APIKeyID: key.ID,
			TenantID: key.TenantID,
			Scopes:   key.Scopes,
		}
		ctx := NewContext(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PolicyAndQuota runs the Policy and Quota stages for route. It must run
// after Authenticate. Schema-validation and RBAC (server_id/tool_name scope
// checks) happen in the handler itself, once the request body has been
// parsed, per spec.md §4.1's ordering note that those two stages need the
// body to evaluate.
func (g *Gate) PolicyAndQuota(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := FromContext(r.Context())
			if identity == nil {
				httpserver.RespondAPIErr(w, errMissingIdentity)
				return
			}

			if err := g.EnforcePolicy(r.Context(), identity.TenantID, route); err != nil {
				httpserver.RespondAPIErr(w, err)
				return
			}
			if err := g.AssertWithinQuota(r.Context(), identity.TenantID); err != nil {
				httpserver.RespondAPIErr(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
