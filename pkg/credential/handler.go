package credential

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/internal/httpserver"
	"github.com/wardenmcp/toolgate/internal/ingress"
)

// Handler serves the Credential Adapter Chain's HTTP surface (spec.md §6:
// GET /v1/auth/connect/:provider, GET /v1/auth/callback).
type Handler struct {
	composite *Composite
	store     *DatabaseAdapter
}

// NewHandler builds a Handler. composite may be nil when no OAuth adapter
// is configured — /connect then responds NOT_IMPLEMENTED per spec.md §6.
func NewHandler(composite *Composite, store *DatabaseAdapter) *Handler {
	return &Handler{composite: composite, store: store}
}

// Routes returns a chi.Router with the authenticated /connect/:provider
// route mounted. /callback is NOT included — per spec.md §6 it carries no
// 401 response, so it is mounted unauthenticated via HandleCallback
// directly on the public router instead of this authenticated group.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/connect/{provider}", h.handleConnect)
	return r
}

type connectResponse struct {
	URL string `json:"url"`
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	identity := ingress.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.Unauthenticated, "Missing API key"))
		return
	}
	if h.composite == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.NotImplemented, "no OAuth adapter configured"))
		return
	}

	provider := chi.URLParam(r, "provider")
	url, err := h.composite.InitiateOAuth(r.Context(), identity.TenantID.String(), provider)
	if err != nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.NotImplemented, err.Error()))
		return
	}

	httpserver.Respond(w, http.StatusOK, connectResponse{URL: url})
}

type callbackResponse struct {
	Status       string `json:"status"`
	Provider     string `json:"provider"`
	ConnectionID string `json:"connection_id"`
}

// HandleCallback confirms a connection established by an external OAuth
// broker (the provider_config_key/connection_id naming mirrors Nango's
// connect-session webhook). The broker — out of scope per spec.md's
// Non-goals on external IdPs — holds the exchanged token; toolgate records
// only that tenant=connection_id now has a live connection to provider.
// Unauthenticated: the external broker calling back has no tenant API key.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	providerConfigKey := r.URL.Query().Get("provider_config_key")
	connectionID := r.URL.Query().Get("connection_id")
	if providerConfigKey == "" || connectionID == "" {
		httpserver.RespondAPIErr(w, apierr.New(apierr.BadRequest, "provider_config_key and connection_id are required"))
		return
	}

	if h.store != nil {
		if err := h.store.StoreToken(r.Context(), connectionID, providerConfigKey, TokenResult{Type: TokenBearer}); err != nil {
			httpserver.RespondAPIErr(w, apierr.New(apierr.Internal, "recording connection"))
			return
		}
	}

	httpserver.Respond(w, http.StatusOK, callbackResponse{
		Status:       "connected",
		Provider:     providerConfigKey,
		ConnectionID: connectionID,
	})
}
