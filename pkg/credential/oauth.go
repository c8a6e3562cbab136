package credential

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// ProviderConfig is one provider's OAuth2 app registration.
type ProviderConfig struct {
	Provider string
	Config   *oauth2.Config
}

// OAuthCredentialAdapter implements initiateOAuth/handleOAuthCallback by
// running the Authorization Code flow per provider: the exchanged token is
// stored as a tenant's provider credential.
type OAuthCredentialAdapter struct {
	configs map[string]*oauth2.Config
	store   *DatabaseAdapter
	redis   *redis.Client
}

// NewOAuthCredentialAdapter builds an OAuthCredentialAdapter over the given
// per-provider configs, persisting exchanged tokens through store.
func NewOAuthCredentialAdapter(configs []ProviderConfig, store *DatabaseAdapter, rdb *redis.Client) *OAuthCredentialAdapter {
	m := make(map[string]*oauth2.Config, len(configs))
	for _, c := range configs {
		m[c.Provider] = c.Config
	}
	return &OAuthCredentialAdapter{configs: m, store: store, redis: rdb}
}

// GetToken delegates to the backing DatabaseAdapter; OAuth tokens live in
// the same encrypted store once exchanged.
func (a *OAuthCredentialAdapter) GetToken(ctx context.Context, tenant, provider string) (*TokenResult, error) {
	return a.store.GetToken(ctx, tenant, provider)
}

// InitiateOAuth returns the provider's consent URL, storing the (state,
// tenant, provider) triple in Redis for HandleOAuthCallback to recover.
func (a *OAuthCredentialAdapter) InitiateOAuth(ctx context.Context, tenant, provider string) (string, error) {
	cfg, ok := a.configs[provider]
	if !ok {
		return "", fmt.Errorf("credential: no OAuth config for provider %q", provider)
	}

	state, err := randomState()
	if err != nil {
		return "", err
	}
	key := "toolgate:oauth_state:" + state
	if err := a.redis.Set(ctx, key, tenant+":"+provider, 10*time.Minute).Err(); err != nil {
		return "", fmt.Errorf("storing oauth state: %w", err)
	}

	return cfg.AuthCodeURL(state), nil
}

// HandleOAuthCallback exchanges the authorization code for a token and
// stores it via the DatabaseAdapter. query carries "state" and "code" as
// returned on the redirect.
func (a *OAuthCredentialAdapter) HandleOAuthCallback(ctx context.Context, tenant, provider string, query map[string]string) error {
	cfg, ok := a.configs[provider]
	if !ok {
		return fmt.Errorf("credential: no OAuth config for provider %q", provider)
	}

	state := query["state"]
	if state == "" {
		return fmt.Errorf("credential: missing state parameter")
	}
	key := "toolgate:oauth_state:" + state
	stored, err := a.redis.GetDel(ctx, key).Result()
	if err != nil || stored == "" {
		return fmt.Errorf("credential: invalid or expired oauth state")
	}

	code := query["code"]
	if code == "" {
		return fmt.Errorf("credential: missing code parameter")
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("credential: oauth code exchange failed: %w", err)
	}

	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		e := token.Expiry
		expiresAt = &e
	}

	return a.store.StoreToken(ctx, tenant, provider, TokenResult{
		Token:        token.AccessToken,
		Type:         TokenBearer,
		ExpiresAt:    expiresAt,
		RefreshToken: token.RefreshToken,
	})
}

// RevokeToken delegates to the backing DatabaseAdapter.
func (a *OAuthCredentialAdapter) RevokeToken(ctx context.Context, tenant, provider string) error {
	return a.store.RevokeToken(ctx, tenant, provider)
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
