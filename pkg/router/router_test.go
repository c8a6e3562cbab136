package router

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/pkg/builtin"
	"github.com/wardenmcp/toolgate/pkg/session"
)

func newTestRouter() *Router {
	builtins := builtin.NewRegistry()
	builtin.RegisterDefaults(builtins)

	return New(
		NewClientPool(),
		NewCircuitBreaker(),
		NewRateLimiter(),
		NewHealthTracker(),
		nil, // Tools: unused on the builtin dispatch path under test
		nil, // Credentials
		session.NewStore(),
		builtins,
	)
}

func TestRouteToolCall_BuiltinDispatch(t *testing.T) {
	rt := newTestRouter()

	result, err := rt.RouteToolCall(context.Background(), "tenant-a", "builtin:health", "ping", nil, CallOpts{})
	if err != nil {
		t.Fatalf("RouteToolCall() error = %v", err)
	}
	if result.ServerID != "builtin:health" || result.ToolName != "ping" {
		t.Errorf("result = %+v, want ServerID=builtin:health ToolName=ping", result)
	}
	if result.IsError {
		t.Errorf("result.IsError = true, want false")
	}
}

func TestRouteToolCall_BuiltinUnknownTool(t *testing.T) {
	rt := newTestRouter()

	_, err := rt.RouteToolCall(context.Background(), "tenant-a", "builtin:health", "not-a-tool", nil, CallOpts{})
	if err == nil {
		t.Fatal("expected error calling an unknown builtin tool")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.NotFound {
		t.Errorf("err = %v, want apierr.NotFound", err)
	}
}

func TestRouteToolCall_SessionDenialShortCircuitsBeforeBuiltin(t *testing.T) {
	rt := newTestRouter()

	sess := rt.Sessions.Create(uuid.New(), session.Budget{DeniedTools: []string{"ping"}}, "")

	_, err := rt.RouteToolCall(context.Background(), "tenant-a", "builtin:health", "ping", nil, CallOpts{SessionID: sess.ID})
	if err == nil {
		t.Fatal("expected session denial error")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.SessionError || apiErr.Code != string(session.CodeToolDenied) {
		t.Errorf("err = %v, want SessionError/TOOL_DENIED", err)
	}
}

func TestRouteToolCall_SessionAllowRecordsUsage(t *testing.T) {
	rt := newTestRouter()

	sess := rt.Sessions.Create(uuid.New(), session.Budget{}, "")

	_, err := rt.RouteToolCall(context.Background(), "tenant-a", "builtin:echo", "echo", map[string]any{"x": 1}, CallOpts{SessionID: sess.ID})
	if err != nil {
		t.Fatalf("RouteToolCall() error = %v", err)
	}

	got, _ := rt.Sessions.Get(sess.ID)
	if got.Usage.ToolCalls != 1 {
		t.Errorf("Usage.ToolCalls = %d, want 1", got.Usage.ToolCalls)
	}
}

func TestScopeAllows(t *testing.T) {
	tests := []struct {
		name     string
		scopes   []string
		server   string
		tool     string
		wantPass bool
	}{
		{"exact match", []string{"github:create_issue"}, "github", "create_issue", true},
		{"server wildcard", []string{"github:*"}, "github", "anything", true},
		{"tool wildcard", []string{"*:ping"}, "any-server", "ping", true},
		{"global wildcard", []string{"*"}, "any-server", "any-tool", true},
		{"no match", []string{"slack:post"}, "github", "create_issue", false},
		{"empty scopes deny all", []string{}, "github", "create_issue", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scopeAllows(tt.scopes, tt.server, tt.tool); got != tt.wantPass {
				t.Errorf("scopeAllows(%v, %q, %q) = %v, want %v", tt.scopes, tt.server, tt.tool, got, tt.wantPass)
			}
		})
	}
}
