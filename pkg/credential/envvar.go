package credential

import (
	"context"
	"os"
	"strings"
)

// EnvVarAdapter resolves tokens from process environment variables using a
// deterministic name mapping (spec.md §4.3 EnvVarAdapter).
type EnvVarAdapter struct{}

// NewEnvVarAdapter builds an EnvVarAdapter.
func NewEnvVarAdapter() *EnvVarAdapter {
	return &EnvVarAdapter{}
}

// GetToken looks up uppercased(provider) with "-" replaced by "_" plus
// "_TOKEN", e.g. "google-calendar" → "GOOGLE_CALENDAR_TOKEN".
func (a *EnvVarAdapter) GetToken(_ context.Context, _, provider string) (*TokenResult, error) {
	envName := strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_TOKEN"
	token := os.Getenv(envName)
	if token == "" {
		return nil, nil
	}
	return &TokenResult{Token: token, Type: TokenBearer}, nil
}
