package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/internal/audit"
	"github.com/wardenmcp/toolgate/internal/httpserver"
	"github.com/wardenmcp/toolgate/internal/ingress"
	"github.com/wardenmcp/toolgate/pkg/metering"
)

// Handler exposes the Tool Router over HTTP (spec.md §6 /v1/tools/call,
// /v1/tools/list), writing the audit and metering rows inline right after
// the call's terminal status is known (spec.md §4.9, §5).
type Handler struct {
	router *Router
	audit  *audit.Writer
	outbox *metering.Outbox
	logger *slog.Logger
}

// NewHandler builds a router Handler. outbox may be nil — metering is
// skipped (but audit still runs) when no outbox is configured.
func NewHandler(router *Router, auditWriter *audit.Writer, outbox *metering.Outbox, logger *slog.Logger) *Handler {
	return &Handler{router: router, audit: auditWriter, outbox: outbox, logger: logger}
}

// Routes returns a chi.Router with /call and /list mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/call", h.handleCall)
	r.Get("/list", h.handleList)
	return r
}

// CallRequest is the JSON body for POST /v1/tools/call.
type CallRequest struct {
	ServerID  string         `json:"server_id" validate:"required"`
	ToolName  string         `json:"tool_name" validate:"required"`
	Arguments map[string]any `json:"arguments"`
	SessionID string         `json:"session_id"`
}

func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request) {
	identity := ingress.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.Unauthenticated, "Missing API key"))
		return
	}

	var req CallRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if !scopeAllows(identity.Scopes, req.ServerID, req.ToolName) {
		h.recordCall(r.Context(), identity, req, "denied", "API key scope does not permit this tool", 0)
		httpserver.RespondAPIErr(w, apierr.New(apierr.ForbiddenScope, "API key scope does not permit this tool"))
		return
	}

	start := time.Now()
	result, callErr := h.router.RouteToolCall(r.Context(), identity.TenantID.String(), req.ServerID, req.ToolName, req.Arguments, CallOpts{SessionID: req.SessionID})
	duration := time.Since(start).Milliseconds()

	status, errMsg := callStatus(result, callErr)
	h.recordCall(r.Context(), identity, req, status, errMsg, duration)

	if callErr != nil {
		// §6/§8 scenario 3: within /v1/tools/call, a NOT_FOUND outcome (unknown
		// or cross-tenant server_id, unknown builtin tool) is reported as 400,
		// not the taxonomy's default 404 — the row's own status stays NOT_FOUND
		// for callers that branch on Kind (e.g. the universal cross-tenant
		// invariant), only the wire status differs for this route.
		if apiErr, ok := apierr.As(callErr); ok && apiErr.Kind == apierr.NotFound {
			httpserver.RespondAPIErr(w, apierr.New(apierr.BadRequest, apiErr.Message))
			return
		}
		httpserver.RespondAPIErr(w, callErr)
		return
	}

	httpserver.Respond(w, http.StatusOK, result)
}

// callStatus derives the metering/audit status bucket from a call's outcome.
// §3's AuditEntry enum is {success, error, denied}: SessionError (budget/tool
// denials enforced by RouteToolCall's session gate) and ForbiddenScope are
// "denied"; a Timeout is its own bucket (spec.md §5); everything else that
// reached dispatch and failed is "error".
func callStatus(result *ToolCallResult, err error) (status string, errMsg string) {
	if err != nil {
		if apiErr, ok := apierr.As(err); ok {
			switch apiErr.Kind {
			case apierr.SessionError, apierr.ForbiddenScope:
				return "denied", apiErr.Message
			case apierr.Timeout:
				return "timeout", apiErr.Message
			}
		}
		return "error", err.Error()
	}
	if result != nil && result.IsError {
		return "error", ""
	}
	return "success", ""
}

// recordCall writes the audit entry and enqueues the metering event for one
// call attempt. Both are best-effort: a failure here is logged but never
// fails the request (spec.md §4.9 "fire-and-forget"). Per invariant I5, a
// denial produces exactly one audit entry and no outbox row — outbox rows
// are only for calls that reached dispatch.
func (h *Handler) recordCall(ctx context.Context, identity *ingress.Identity, req CallRequest, status, errMsg string, durationMs int64) {
	if h.audit != nil {
		h.audit.LogCall(identity.TenantID, identity.APIKeyID, req.ServerID, req.ToolName, req.Arguments, status, errMsg, durationMs)
	}
	if status == "denied" {
		return
	}
	if h.outbox != nil {
		if _, err := h.outbox.Enqueue(ctx, metering.LedgerEvent{
			EventID:      uuid.New(),
			TenantID:     identity.TenantID,
			ServerID:     req.ServerID,
			ToolName:     req.ToolName,
			StatusBucket: status,
			DurationMs:   durationMs,
		}); err != nil {
			h.logger.Error("enqueuing metering event", "error", err, "server_id", req.ServerID, "tool_name", req.ToolName)
		}
	}
}

// ListResponse is the JSON body for GET /v1/tools/list.
type ListResponse struct {
	Tools []ServerTools `json:"tools"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	identity := ingress.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.Unauthenticated, "Missing API key"))
		return
	}

	filters := ListFilters{
		Server: r.URL.Query().Get("server"),
		Search: r.URL.Query().Get("search"),
		Scopes: identity.Scopes,
	}

	tools, err := h.router.RouteToolListFiltered(r.Context(), identity.TenantID.String(), filters)
	if err != nil {
		h.logger.Error("listing tools", "error", err)
		httpserver.RespondAPIErr(w, apierr.New(apierr.Internal, "listing tools"))
		return
	}

	httpserver.Respond(w, http.StatusOK, ListResponse{Tools: tools})
}
