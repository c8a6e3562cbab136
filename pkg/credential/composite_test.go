package credential

import (
	"context"
	"testing"
)

type fakeAdapter struct {
	tokens map[string]*TokenResult // key: tenant+":"+provider
}

func (f *fakeAdapter) GetToken(_ context.Context, tenant, provider string) (*TokenResult, error) {
	return f.tokens[tenant+":"+provider], nil
}

type fakeConnectionLister struct {
	fakeAdapter
	conns []Connection
}

func (f *fakeConnectionLister) ListConnections(_ context.Context, _ string) ([]Connection, error) {
	return f.conns, nil
}

func TestComposite_GetToken_FirstNonNullWins(t *testing.T) {
	first := &fakeAdapter{tokens: map[string]*TokenResult{}}
	second := &fakeAdapter{tokens: map[string]*TokenResult{
		"acme:github": {Token: "from-second", Type: TokenBearer},
	}}

	c := NewComposite(first, second)
	result, err := c.GetToken(context.Background(), "acme", "github")
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if result == nil || result.Token != "from-second" {
		t.Fatalf("GetToken() = %v, want token from-second adapter", result)
	}
}

func TestComposite_GetToken_NoAdapterHasIt(t *testing.T) {
	c := NewComposite(&fakeAdapter{tokens: map[string]*TokenResult{}})
	result, err := c.GetToken(context.Background(), "acme", "github")
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if result != nil {
		t.Fatalf("GetToken() = %v, want nil", result)
	}
}

func TestComposite_ListConnections_DedupesFirstAdapterWins(t *testing.T) {
	first := &fakeConnectionLister{conns: []Connection{{Provider: "github"}}}
	second := &fakeConnectionLister{conns: []Connection{{Provider: "github", Expired: true}, {Provider: "slack"}}}

	c := NewComposite(first, second)
	conns, err := c.ListConnections(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ListConnections() error = %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("ListConnections() returned %d connections, want 2", len(conns))
	}

	byProvider := map[string]Connection{}
	for _, c := range conns {
		byProvider[c.Provider] = c
	}
	if byProvider["github"].Expired {
		t.Error("github connection should come from the first adapter (not expired), first adapter wins")
	}
}

func TestComposite_RevokeToken_NoAdapterImplements(t *testing.T) {
	c := NewComposite(&fakeAdapter{})
	if err := c.RevokeToken(context.Background(), "acme", "github"); err == nil {
		t.Error("expected error when no adapter implements Revoker")
	}
}

func TestEnvVarAdapter_NameMapping(t *testing.T) {
	t.Setenv("GOOGLE_CALENDAR_TOKEN", "secret-token")

	a := NewEnvVarAdapter()
	result, err := a.GetToken(context.Background(), "any-tenant", "google-calendar")
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if result == nil || result.Token != "secret-token" {
		t.Fatalf("GetToken() = %v, want secret-token", result)
	}
	if result.Type != TokenBearer {
		t.Errorf("Type = %q, want %q", result.Type, TokenBearer)
	}
}

func TestEnvVarAdapter_MissingEnvReturnsNil(t *testing.T) {
	a := NewEnvVarAdapter()
	result, err := a.GetToken(context.Background(), "any-tenant", "nonexistent-provider-xyz")
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if result != nil {
		t.Fatalf("GetToken() = %v, want nil", result)
	}
}
