package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/internal/httpserver"
	"github.com/wardenmcp/toolgate/internal/ingress"
)

// Row is one entry returned by GET /v1/audit-logs.
type Row struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	APIKeyID     uuid.UUID `json:"api_key_id"`
	ServerID     string    `json:"server_id"`
	ToolName     string    `json:"tool_name"`
	ArgsHash     string    `json:"args_hash"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Handler serves GET /v1/audit-logs, scoped to the caller's own tenant.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler builds a Handler over pool. A nil pool means no audit
// datastore is configured, and the route answers 501 (spec.md §6:
// "501 when no datastore").
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// Routes returns a chi.Router with the audit-logs route mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	identity := ingress.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.Unauthenticated, "Missing API key"))
		return
	}
	if h.pool == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.NotImplemented, "no audit datastore configured"))
		return
	}

	params, err := httpserver.ParseListParams(r)
	if err != nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.BadRequest, err.Error()))
		return
	}

	rows, total, err := h.list(r.Context(), identity.TenantID, params.PerPage, params.Offset)
	if err != nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.Internal, "failed to list audit log"))
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewPage(rows, params, total))
}

func (h *Handler) list(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Row, int, error) {
	var total int
	if err := h.pool.QueryRow(ctx,
		`SELECT count(*) FROM public.mcpgate_audit_log WHERE tenant_id = $1`, tenantID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := h.pool.Query(ctx, `
		SELECT tenant_id, api_key_id, server_id, tool_name, args_hash, status,
		       coalesce(error_message, ''), duration_ms, created_at
		FROM public.mcpgate_audit_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.TenantID, &row.APIKeyID, &row.ServerID, &row.ToolName, &row.ArgsHash,
			&row.Status, &row.ErrorMessage, &row.DurationMs, &row.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
