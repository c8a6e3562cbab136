package chain

import (
	"context"
	"testing"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/pkg/builtin"
	"github.com/wardenmcp/toolgate/pkg/router"
	"github.com/wardenmcp/toolgate/pkg/session"
)

func newTestExecutor() *Executor {
	builtins := builtin.NewRegistry()
	builtin.RegisterDefaults(builtins)

	rt := router.New(
		router.NewClientPool(),
		router.NewCircuitBreaker(),
		router.NewRateLimiter(),
		router.NewHealthTracker(),
		nil,
		nil,
		session.NewStore(),
		builtins,
	)
	return NewExecutor(rt)
}

func TestExecute_LinearChainCompletes(t *testing.T) {
	e := newTestExecutor()

	req := Request{
		Steps: []Step{
			{ID: "one", Server: "builtin:echo", Tool: "echo", Args: map[string]any{"n": 1}},
			{ID: "two", Server: "builtin:health", Tool: "ping", DependsOn: []string{"one"}},
		},
		OnError: OnErrorStop,
	}

	result, err := e.Execute(context.Background(), "tenant-a", req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(result.Steps))
	}
	for _, s := range result.Steps {
		if s.Status != StepCompleted {
			t.Errorf("step %q status = %q, want completed", s.ID, s.Status)
		}
	}
	if result.ChainID[:6] != "chain_" {
		t.Errorf("ChainID = %q, want chain_ prefix", result.ChainID)
	}
}

func TestExecute_StopPolicySkipsDownstreamAfterFailure(t *testing.T) {
	e := newTestExecutor()

	req := Request{
		Steps: []Step{
			{ID: "bad", Server: "builtin:time", Tool: "not-a-real-tool"},
			{ID: "after", Server: "builtin:health", Tool: "ping", DependsOn: []string{"bad"}},
		},
		OnError: OnErrorStop,
	}

	result, err := e.Execute(context.Background(), "tenant-a", req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", result.Status)
	}

	byID := map[string]StepResult{}
	for _, s := range result.Steps {
		byID[s.ID] = s
	}
	if byID["bad"].Status != StepFailed {
		t.Errorf("bad step status = %q, want failed", byID["bad"].Status)
	}
	if byID["after"].Status != StepSkipped {
		t.Errorf("after step status = %q, want skipped", byID["after"].Status)
	}
	if byID["after"].DurationMs != 0 {
		t.Errorf("after step duration = %d, want 0 (skipped)", byID["after"].DurationMs)
	}
}

func TestExecute_ContinuePolicyRunsEveryLayer(t *testing.T) {
	e := newTestExecutor()

	req := Request{
		Steps: []Step{
			{ID: "bad", Server: "builtin:time", Tool: "not-a-real-tool"},
			{ID: "after", Server: "builtin:health", Tool: "ping", DependsOn: []string{"bad"}},
		},
		OnError: OnErrorContinue,
	}

	result, err := e.Execute(context.Background(), "tenant-a", req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Status != StatusPartial {
		t.Errorf("Status = %q, want partial", result.Status)
	}

	byID := map[string]StepResult{}
	for _, s := range result.Steps {
		byID[s.ID] = s
	}
	if byID["after"].Status != StepCompleted {
		t.Errorf("after step status = %q, want completed (continue policy must still run it)", byID["after"].Status)
	}
}

func TestValidate_RejectsEmptySteps(t *testing.T) {
	err := Validate(Request{}, nil)
	if err == nil {
		t.Fatal("expected error for empty steps")
	}
}

func TestValidate_RejectsDuplicateStepIDs(t *testing.T) {
	req := Request{Steps: []Step{{ID: "a", Server: "s", Tool: "t"}, {ID: "a", Server: "s", Tool: "t"}}}
	err := Validate(req, nil)
	if err == nil {
		t.Fatal("expected error for duplicate step ids")
	}
}

func TestValidate_RejectsUnknownDependency(t *testing.T) {
	req := Request{Steps: []Step{{ID: "a", Server: "s", Tool: "t", DependsOn: []string{"ghost"}}}}
	err := Validate(req, nil)
	if err == nil {
		t.Fatal("expected error for dependency on an unknown step")
	}
}

func TestValidate_EnforcesScope(t *testing.T) {
	req := Request{Steps: []Step{{ID: "a", Server: "github", Tool: "delete_repo"}}}
	err := Validate(req, denyAllScope{})
	if err == nil {
		t.Fatal("expected scope-denied error")
	}
	apiErr, ok := apierr.As(err)
	if !ok || apiErr.Kind != apierr.ForbiddenScope {
		t.Errorf("err = %v, want apierr.ForbiddenScope", err)
	}
}

type denyAllScope struct{}

func (denyAllScope) AllowsScope(string, string) bool { return false }
