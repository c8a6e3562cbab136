// Package seed provisions a development tenant and API key so the gateway
// can be exercised end-to-end without a separate admin tool.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardenmcp/toolgate/pkg/apikey"
	"github.com/wardenmcp/toolgate/pkg/tenant"
)

// DevAPIKey is the raw API key seeded for development/testing.
// It is only created by the seed command and should never be used in production.
const DevAPIKey = "tg_dev_seed_key_do_not_use_in_production"

// DevTenantName is the name of the tenant the seed command provisions.
const DevTenantName = "acme-dev"

// Run provisions a development tenant with an allow-all API key. It is
// idempotent in spirit: operators are expected to run it once against a
// fresh database.
func Run(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	tenants := tenant.NewStore(pool)
	t, err := tenants.Create(ctx, DevTenantName, "dev", 10000)
	if err != nil {
		return fmt.Errorf("provisioning seed tenant: %w", err)
	}
	logger.Info("seed: provisioned tenant", "tenant_id", t.ID, "name", t.Name)

	hash := apikey.HashAPIKey(DevAPIKey)
	keys := apikey.NewStore(pool)
	key, err := keys.Create(ctx, apikey.CreateParams{
		TenantID:    t.ID,
		KeyHash:     hash,
		KeyPrefix:   DevAPIKey[:16],
		Description: "Development seed API key",
		Scopes:      nil, // allow-all
	})
	if err != nil {
		return fmt.Errorf("creating seed API key: %w", err)
	}

	logger.Info("seed: created API key",
		"id", key.ID,
		"prefix", key.KeyPrefix,
		"raw_key", DevAPIKey,
	)
	logger.Info("seed: completed successfully", "tenant", t.Name)
	return nil
}
