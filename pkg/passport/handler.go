package passport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/internal/httpserver"
	"github.com/wardenmcp/toolgate/internal/ingress"
)

// RegisterRequest is the JSON body for POST /v1/servers/register.
type RegisterRequest struct {
	Name         string            `json:"name" validate:"required"`
	Transport    Transport         `json:"transport" validate:"required"`
	URL          string            `json:"url"`
	Command      string            `json:"command"`
	Args         []string          `json:"args"`
	Env          map[string]string `json:"env"`
	Description  string            `json:"description"`
	AuthProvider string            `json:"auth_provider"`
}

// Handler provides HTTP handlers for the server-registry API.
type Handler struct {
	registry *ToolRegistry
	logger   *slog.Logger
}

// NewHandler creates a server-registry Handler.
func NewHandler(registry *ToolRegistry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Routes returns a chi.Router with the server-registry routes mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.handleRegister)
	r.Get("/", h.handleList)
	r.Delete("/{id}", h.handleDelete)
	return r
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	identity := ingress.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.Unauthenticated, "Missing API key"))
		return
	}

	var req RegisterRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.registry.Register(r.Context(), identity.TenantID.String(), RegisterInput{
		Name:         req.Name,
		Description:  req.Description,
		Transport:    req.Transport,
		URL:          req.URL,
		Command:      req.Command,
		Args:         req.Args,
		Env:          req.Env,
		AuthProvider: req.AuthProvider,
	})
	if err != nil {
		httpserver.RespondAPIErr(w, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	identity := ingress.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.Unauthenticated, "Missing API key"))
		return
	}

	params, err := httpserver.ParseListParams(r)
	if err != nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.BadRequest, err.Error()))
		return
	}

	items, total, err := h.registry.List(r.Context(), identity.TenantID.String(), params.PerPage, params.Offset)
	if err != nil {
		h.logger.Error("listing servers", "error", err)
		httpserver.RespondAPIErr(w, apierr.New(apierr.Internal, "listing servers"))
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewPage(items, params, total))
}

// handleDelete enforces I3 (cross-tenant passports read as NOT_FOUND, not
// FORBIDDEN) before soft-deleting.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity := ingress.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.Unauthenticated, "Missing API key"))
		return
	}

	id := chi.URLParam(r, "id")
	p, err := h.registry.Get(r.Context(), id)
	if err != nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.NotFound, "server not found"))
		return
	}
	if p.Owner != identity.TenantID.String() && p.Owner != SystemOwner {
		httpserver.RespondAPIErr(w, apierr.New(apierr.NotFound, "server not found"))
		return
	}

	if err := h.registry.Remove(r.Context(), id); err != nil {
		h.logger.Error("removing server", "error", err, "id", id)
		httpserver.RespondAPIErr(w, apierr.New(apierr.Internal, "removing server"))
		return
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}
