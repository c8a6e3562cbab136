package discovery

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/internal/httpserver"
	"github.com/wardenmcp/toolgate/internal/ingress"
)

const maxTopK = 50

// Request is the POST /v1/tools/discover request body (spec.md §6).
type Request struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k" validate:"omitempty,min=1,max=50"`
}

// Response is the POST /v1/tools/discover response envelope.
type Response struct {
	Results []Result `json:"results"`
}

// Handler serves POST /v1/tools/discover.
type Handler struct {
	service *Service
}

// NewHandler builds a Handler over service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns a chi.Router with the discover route mounted at its root,
// so callers Mount it directly at the full /v1/tools/discover path.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleDiscover)
	return r
}

func (h *Handler) handleDiscover(w http.ResponseWriter, r *http.Request) {
	identity := ingress.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondAPIErr(w, apierr.New(apierr.Unauthenticated, "Missing API key"))
		return
	}

	var req Request
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = maxTopK
	}

	results := h.service.Search(req.Query, topK, identity.Scopes)
	httpserver.Respond(w, http.StatusOK, Response{Results: results})
}
