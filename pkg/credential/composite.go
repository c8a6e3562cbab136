package credential

import (
	"context"
	"fmt"
)

// Composite implements the adapter chain policy over an ordered list of
// adapters (spec.md §4.3 "Composite policy").
type Composite struct {
	adapters []Adapter
}

// NewComposite builds a Composite over adapters in declaration order; order
// matters for GetToken's first-non-null precedence.
func NewComposite(adapters ...Adapter) *Composite {
	return &Composite{adapters: adapters}
}

// GetToken iterates adapters in order and returns the first non-null result.
func (c *Composite) GetToken(ctx context.Context, tenant, provider string) (*TokenResult, error) {
	for _, a := range c.adapters {
		result, err := a.GetToken(ctx, tenant, provider)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// InitiateOAuth delegates to the first adapter implementing OAuthInitiator.
func (c *Composite) InitiateOAuth(ctx context.Context, tenant, provider string) (string, error) {
	for _, a := range c.adapters {
		if initiator, ok := a.(OAuthInitiator); ok {
			return initiator.InitiateOAuth(ctx, tenant, provider)
		}
	}
	return "", errNoAdapter("initiateOAuth")
}

// HandleOAuthCallback delegates to the first adapter implementing OAuthInitiator.
func (c *Composite) HandleOAuthCallback(ctx context.Context, tenant, provider string, query map[string]string) error {
	for _, a := range c.adapters {
		if initiator, ok := a.(OAuthInitiator); ok {
			return initiator.HandleOAuthCallback(ctx, tenant, provider, query)
		}
	}
	return errNoAdapter("handleOAuthCallback")
}

// RevokeToken delegates to the first adapter implementing Revoker.
func (c *Composite) RevokeToken(ctx context.Context, tenant, provider string) error {
	for _, a := range c.adapters {
		if revoker, ok := a.(Revoker); ok {
			return revoker.RevokeToken(ctx, tenant, provider)
		}
	}
	return errNoAdapter("revokeToken")
}

// ListConnections aggregates listConnections across every adapter that
// implements ConnectionLister, deduplicating by provider (first adapter wins).
func (c *Composite) ListConnections(ctx context.Context, tenant string) ([]Connection, error) {
	seen := make(map[string]bool)
	var all []Connection

	for _, a := range c.adapters {
		lister, ok := a.(ConnectionLister)
		if !ok {
			continue
		}
		conns, err := lister.ListConnections(ctx, tenant)
		if err != nil {
			return nil, err
		}
		for _, conn := range conns {
			if seen[conn.Provider] {
				continue
			}
			seen[conn.Provider] = true
			all = append(all, conn)
		}
	}
	return all, nil
}

func errNoAdapter(method string) error {
	return fmt.Errorf("credential: no adapter in chain implements %s", method)
}
