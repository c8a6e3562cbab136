package chain

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/internal/httpserver"
	"github.com/wardenmcp/toolgate/internal/ingress"
)

// scopeIdentity adapts an ingress.Identity's Scopes to the Scoper interface,
// mirroring pkg/apikey.Row.AllowsScope's nil-allows-all / pattern-match
// semantics without importing pkg/apikey from this package.
type scopeIdentity struct {
	scopes []string
}

func (s scopeIdentity) AllowsScope(serverID, toolName string) bool {
	if s.scopes == nil {
		return true
	}
	exact := serverID + ":" + toolName
	serverWild := serverID + ":*"
	toolWild := "*:" + toolName
	for _, pattern := range s.scopes {
		switch pattern {
		case exact, serverWild, toolWild, "*":
			return true
		}
	}
	return false
}

// Handler serves POST /v1/chains/execute (spec.md §6).
type Handler struct {
	executor *Executor
}

// NewHandler builds a Handler over executor.
func NewHandler(executor *Executor) *Handler {
	return &Handler{executor: executor}
}

// Routes returns a chi.Router with the chain-execute route mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/execute", h.handleExecute)
	return r
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	identity := ingress.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.Unauthenticated, "Missing API key"))
		return
	}

	var req Request
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := Validate(req, scopeIdentity{scopes: identity.Scopes}); err != nil {
		httpserver.RespondAPIErr(w, err)
		return
	}

	result, err := h.executor.Execute(r.Context(), identity.TenantID.String(), req)
	if err != nil {
		httpserver.RespondAPIErr(w, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, result)
}
