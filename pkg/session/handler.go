package session

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/internal/httpserver"
	"github.com/wardenmcp/toolgate/internal/ingress"
)

// BudgetRequest is the JSON shape of a session's budget in request/response bodies.
type BudgetRequest struct {
	MaxToolCalls   *int     `json:"max_tool_calls"`
	MaxDurationMs  *int64   `json:"max_duration_ms"`
	MaxCostUSD     *float64 `json:"max_cost_usd"`
	AllowedServers []string `json:"allowed_servers"`
	DeniedTools    []string `json:"denied_tools"`
	ExpiresAt      *string  `json:"expires_at"` // RFC3339
}

// CreateRequest is the JSON body for POST /v1/sessions.
type CreateRequest struct {
	Budget  BudgetRequest `json:"budget" validate:"required"`
	AgentID string        `json:"agent_id"`
}

// Response is the JSON response for a single session.
type Response struct {
	SessionID string  `json:"session_id"`
	TenantID  string  `json:"tenant_id"`
	AgentID   string  `json:"agent_id,omitempty"`
	Status    Status  `json:"status"`
	Usage     Usage   `json:"usage"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func toResponse(s *Session) Response {
	return Response{
		SessionID: s.ID,
		TenantID:  s.TenantID.String(),
		AgentID:   s.AgentID,
		Status:    s.Status,
		Usage:     s.Usage,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
}

func toBudget(req BudgetRequest) (Budget, error) {
	b := Budget{
		MaxToolCalls:   req.MaxToolCalls,
		MaxDurationMs:  req.MaxDurationMs,
		MaxCostUSD:     req.MaxCostUSD,
		AllowedServers: req.AllowedServers,
		DeniedTools:    req.DeniedTools,
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return Budget{}, err
		}
		b.ExpiresAt = &t
	}
	return b, nil
}

// Handler serves the session HTTP endpoints (spec.md §6: POST/GET/DELETE /v1/sessions[/:id]).
type Handler struct {
	store *Store
}

// NewHandler builds a Handler over the given session Store.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Routes returns a chi.Router with the session routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Delete("/{id}", h.handleClose)
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity := ingress.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.Unauthenticated, "Missing API key"))
		return
	}

	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	budget, err := toBudget(req.Budget)
	if err != nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.BadRequest, "invalid expires_at: "+err.Error()))
		return
	}

	sess := h.store.Create(identity.TenantID, budget, req.AgentID)
	httpserver.Respond(w, http.StatusCreated, toResponse(sess))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := h.store.Get(id)
	if !ok {
		httpserver.RespondAPIErr(w, apierr.New(apierr.NotFound, "session not found"))
		return
	}
	httpserver.Respond(w, http.StatusOK, toResponse(sess))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.store.Get(id); !ok {
		httpserver.RespondAPIErr(w, apierr.New(apierr.NotFound, "session not found"))
		return
	}
	h.store.Close(id)
	httpserver.Respond(w, http.StatusNoContent, nil)
}
