package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wardenmcp/toolgate/internal/config"
)

// Authenticator supplies the middleware that guards every route under /v1
// (satisfied by *ingress.Gate).
type Authenticator interface {
	Authenticate(next http.Handler) http.Handler
}

// Server holds the HTTP server dependencies and the chi router tree. Domain
// handlers (passport, router, chain, session, discovery, audit, credential)
// are mounted onto APIRouter by internal/app after NewServer returns.
type Server struct {
	Router    *chi.Mux
	APIRouter chi.Router // authenticated /v1 sub-router
	Logger    *slog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Metrics   *prometheus.Registry
	startedAt time.Time
}

// NewServer creates the HTTP server's middleware chain and mounts the
// unauthenticated ops/contract endpoints (spec.md §6: /health, /healthz,
// /readyz, /metrics). gate's Authenticate middleware guards everything
// under /v1; callers mount domain handlers on the returned Server's
// APIRouter afterward.
func NewServer(cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry, gate Authenticator) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health/readiness (unauthenticated, ambient ops surface).
	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)

	// Documented contract endpoint (spec.md §6).
	s.Router.Get("/health", s.handleHealth)

	// Prometheus metrics (unauthenticated).
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	// Authenticated, scoped /v1 routes.
	s.Router.Route("/v1", func(r chi.Router) {
		r.Use(gate.Authenticate)
		s.APIRouter = r
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "database not ready")
		return
	}

	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: redis ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "redis not ready")
		return
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}

type healthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

// handleHealth serves the documented GET /health contract endpoint
// (spec.md §6: `200 {ok:true, service}`).
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, healthResponse{OK: true, Service: "toolgate"})
}
