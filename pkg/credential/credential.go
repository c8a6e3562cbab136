// Package credential implements the Credential Adapter Chain (spec.md §4.3):
// a composite of pluggable token sources consulted in declaration order to
// resolve the outbound credential for a tenant+provider pair.
package credential

import (
	"context"
	"time"
)

// TokenType identifies how a TokenResult's token must be placed on the
// outbound Authorization header (spec.md §4.4 step 4).
type TokenType string

const (
	TokenBearer TokenType = "bearer"
	TokenAPIKey TokenType = "api_key"
	TokenBasic  TokenType = "basic"
)

// TokenResult is what an adapter's getToken returns on success.
type TokenResult struct {
	Token        string
	Type         TokenType
	ExpiresAt    *time.Time
	RefreshToken string
	Headers      map[string]string
}

// Connection is one row of a listConnections response: a provider a tenant
// has a credential for, and whether it has expired.
type Connection struct {
	Provider  string
	Expired   bool
	ExpiresAt *time.Time
}

// Adapter is the mandatory half of the adapter contract.
type Adapter interface {
	// GetToken returns a TokenResult, or (nil, nil) when this adapter has no
	// credential for tenant/provider.
	GetToken(ctx context.Context, tenant, provider string) (*TokenResult, error)
}

// OAuthInitiator is the optional initiateOAuth/handleOAuthCallback pair.
type OAuthInitiator interface {
	InitiateOAuth(ctx context.Context, tenant, provider string) (redirectURL string, err error)
	HandleOAuthCallback(ctx context.Context, tenant, provider string, query map[string]string) error
}

// Revoker is the optional revokeToken method.
type Revoker interface {
	RevokeToken(ctx context.Context, tenant, provider string) error
}

// ConnectionLister is the optional listConnections method.
type ConnectionLister interface {
	ListConnections(ctx context.Context, tenant string) ([]Connection, error)
}
