// Package app wires every component from spec.md §4 into a running
// process, dispatching on TOOLGATE_MODE the way the teacher's internal/app
// dispatches on NIGHTOWL_MODE.
package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wardenmcp/toolgate/internal/audit"
	"github.com/wardenmcp/toolgate/internal/config"
	"github.com/wardenmcp/toolgate/internal/httpserver"
	"github.com/wardenmcp/toolgate/internal/ingress"
	"github.com/wardenmcp/toolgate/internal/platform"
	"github.com/wardenmcp/toolgate/internal/seed"
	"github.com/wardenmcp/toolgate/internal/telemetry"
	"github.com/wardenmcp/toolgate/pkg/apikey"
	"github.com/wardenmcp/toolgate/pkg/builtin"
	"github.com/wardenmcp/toolgate/pkg/chain"
	"github.com/wardenmcp/toolgate/pkg/credential"
	"github.com/wardenmcp/toolgate/pkg/discovery"
	"github.com/wardenmcp/toolgate/pkg/metering"
	"github.com/wardenmcp/toolgate/pkg/passport"
	"github.com/wardenmcp/toolgate/pkg/router"
	"github.com/wardenmcp/toolgate/pkg/session"
	"github.com/wardenmcp/toolgate/pkg/tenant"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the appropriate mode (api, outbox, or seed).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting toolgate", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
	case "outbox":
		return runOutbox(ctx, cfg, logger, db)
	case "seed":
		return seed.Run(ctx, db, logger)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	// --- Ingress Gate (spec.md §4.1): Auth -> Policy -> Quota ---
	tenants := tenant.NewStore(db)
	keys := apikey.NewStore(db)
	quotaGate := ingress.NewQuotaGate(rdb)
	policyGate := ingress.NewPolicyGate()
	gate := ingress.NewGate(keys, tenants, quotaGate, policyGate)

	// --- Passport Store / Tool Registry (spec.md §4.2) ---
	passportStore := passport.NewStore(db)
	toolRegistry := passport.NewToolRegistry(passportStore)

	// --- Builtin Registry (spec.md §4.6) ---
	builtinRegistry := builtin.NewRegistry()
	builtin.RegisterDefaults(builtinRegistry)

	// --- Credential Adapter Chain (spec.md §4.3). The env-var adapter is
	// always present; the database adapter (encrypted at-rest tokens) is
	// enabled only once an encryption key is configured. No OAuth provider
	// adapter is wired here: no provider client-id/secret config exists, so
	// GET /v1/auth/connect/:provider legitimately answers 501 (spec.md §6). ---
	credAdapters := []credential.Adapter{credential.NewEnvVarAdapter()}
	var dbCredAdapter *credential.DatabaseAdapter
	if cfg.CredentialEncryptionKey != "" {
		keyMaterial, err := hex.DecodeString(cfg.CredentialEncryptionKey)
		if err != nil {
			return fmt.Errorf("decoding CREDENTIAL_ENCRYPTION_KEY: %w", err)
		}
		dbCredAdapter, err = credential.NewDatabaseAdapter(db, keyMaterial)
		if err != nil {
			return fmt.Errorf("initializing credential store: %w", err)
		}
		credAdapters = append(credAdapters, dbCredAdapter)
		logger.Info("credential database adapter enabled")
	} else {
		logger.Info("credential database adapter disabled (CREDENTIAL_ENCRYPTION_KEY not set)")
	}
	credComposite := credential.NewComposite(credAdapters...)

	// --- Session Store (spec.md §4.5) ---
	sessionStore := session.NewStore()

	// --- Tool Router (spec.md §4.4) ---
	rt := router.New(
		router.NewClientPool(),
		router.NewCircuitBreaker(),
		router.NewRateLimiter(),
		router.NewHealthTracker(),
		toolRegistry,
		credComposite,
		sessionStore,
		builtinRegistry,
	)

	// --- Chain Executor (spec.md §4.7) ---
	executor := chain.NewExecutor(rt)

	// --- Discovery index (spec.md §4.8) ---
	discoverySvc := discovery.NewService(toolRegistry, builtinRegistry)
	if err := discoverySvc.Rebuild(ctx); err != nil {
		logger.Error("building initial discovery index", "error", err)
	}

	// --- Audit writer (spec.md §4.9, fire-and-forget, buffered async) ---
	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	// --- Metering outbox (spec.md §4.9). Only the call handler enqueues
	// here; the delivery worker runs as a separate "outbox" mode process. ---
	outbox := metering.NewOutbox(db)

	// --- HTTP server ---
	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg, gate)

	// Unauthenticated endpoints that nonetheless live under /v1 (spec.md §6:
	// neither lists a 401, so both bypass gate.Authenticate).
	srv.Router.Mount("/v1/catalog", builtin.NewCatalogHandler(builtinRegistry).Routes())
	credHandler := credential.NewHandler(credComposite, dbCredAdapter)
	srv.Router.Get("/v1/auth/callback", credHandler.HandleCallback)

	// Authenticated domain handlers. Each group gets its own PolicyAndQuota
	// middleware so the quota counter fires once per call regardless of
	// whether the route name also carries a plan-based policy restriction.
	srv.APIRouter.With(gate.PolicyAndQuota(ingress.RouteRegisterServer)).
		Mount("/servers", passport.NewHandler(toolRegistry, logger).Routes())
	srv.APIRouter.With(gate.PolicyAndQuota("tool_call")).
		Mount("/tools", router.NewHandler(rt, auditWriter, outbox, logger).Routes())
	srv.APIRouter.With(gate.PolicyAndQuota("discover")).
		Mount("/tools/discover", discovery.NewHandler(discoverySvc).Routes())
	srv.APIRouter.With(gate.PolicyAndQuota(ingress.RouteExecuteChain)).
		Mount("/chains", chain.NewHandler(executor).Routes())
	srv.APIRouter.With(gate.PolicyAndQuota("sessions")).
		Mount("/sessions", session.NewHandler(sessionStore).Routes())
	srv.APIRouter.With(gate.PolicyAndQuota("auth")).
		Mount("/auth", credHandler.Routes())
	srv.APIRouter.With(gate.PolicyAndQuota("audit_logs")).
		Mount("/audit-logs", audit.NewHandler(db).Routes())

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runOutbox runs the metering-delivery worker loop (spec.md §4.9 step 2)
// until ctx is cancelled, releasing any in-flight leases on shutdown
// (spec.md §9 graceful shutdown).
func runOutbox(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool) error {
	outbox := metering.NewOutbox(db)

	var emitter metering.Emitter
	if cfg.OpenMeterEnabled {
		emitter = metering.NewHTTPEmitter(cfg.OpenMeterIngestURL, cfg.OpenMeterAPIKey)
		logger.Info("metering emitter: openmeter http emitter enabled", "endpoint", cfg.OpenMeterIngestURL)
	} else {
		emitter = &metering.NoopEmitter{Logger: logger}
		logger.Info("metering emitter: noop (OPENMETER_ENABLED not set)")
	}

	workerID := cfg.OutboxWorkerID
	if workerID == "" {
		workerID = fmt.Sprintf("toolgate-outbox-%d", time.Now().UnixNano())
	}

	worker := metering.NewWorker(outbox, emitter, logger, workerID)
	if leaseWindow, err := time.ParseDuration(cfg.OutboxLeaseWindow); err == nil {
		worker.SetLeaseWindow(leaseWindow)
	} else {
		logger.Error("parsing OUTBOX_LEASE_WINDOW, using default", "error", err)
	}
	if pollInterval, err := time.ParseDuration(cfg.OutboxPollInterval); err == nil {
		worker.SetPollInterval(pollInterval)
	} else {
		logger.Error("parsing OUTBOX_POLL_INTERVAL, using default", "error", err)
	}
	worker.SetBatchSize(cfg.OutboxBatchSize)

	logger.Info("outbox worker started", "worker_id", workerID)
	worker.Run(ctx)
	logger.Info("outbox worker stopped")
	return nil
}
