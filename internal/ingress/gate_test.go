package ingress

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wardenmcp/toolgate/internal/apierr"
)

// TestGate_Resolve_RejectsMalformedHeader covers the header-parsing rejections
// that short-circuit before any store lookup (spec.md §4.1 resolve). The
// accept path needs a live *apikey.Store and is not tested here.
func TestGate_Resolve_RejectsMalformedHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc123"},
		{"bearer no token", "Bearer "},
		{"bearer only whitespace", "Bearer    "},
	}

	g := &Gate{}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			_, err := g.Resolve(r.Context(), r)

			e, ok := apierr.As(err)
			if !ok {
				t.Fatalf("expected *apierr.Error, got %v", err)
			}
			if e.Kind != apierr.Unauthenticated {
				t.Errorf("kind = %q, want %q", e.Kind, apierr.Unauthenticated)
			}
			if e.Message != "Missing API key" {
				t.Errorf("message = %q, want %q", e.Message, "Missing API key")
			}
		})
	}
}

func TestPolicyGate_Check(t *testing.T) {
	p := NewPolicyGate()

	tests := []struct {
		name    string
		plan    string
		route   string
		wantErr bool
	}{
		{"free denied register_server", PlanFree, RouteRegisterServer, true},
		{"free denied execute_chain", PlanFree, RouteExecuteChain, true},
		{"free allowed other route", PlanFree, "call_tool", false},
		{"pro allowed register_server", PlanPro, RouteRegisterServer, false},
		{"enterprise allowed everything", PlanEnterprise, RouteExecuteChain, false},
		{"unknown plan unrestricted", "unknown-plan", RouteRegisterServer, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Check(tt.plan, tt.route)
			if tt.wantErr {
				e, ok := apierr.As(err)
				if !ok || e.Kind != apierr.ForbiddenPolicy {
					t.Fatalf("expected FORBIDDEN_POLICY, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
