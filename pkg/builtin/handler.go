package builtin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wardenmcp/toolgate/internal/httpserver"
)

// CatalogHandler serves the unauthenticated GET /v1/catalog summary
// (spec.md §6: `200 {builtin_servers:N, servers:[{id,name}]}`). The catalog
// enumerates builtin servers only — tenant-registered passports are a
// per-tenant concern served by GET /v1/servers instead.
type CatalogHandler struct {
	registry *Registry
}

// NewCatalogHandler builds a CatalogHandler over registry.
func NewCatalogHandler(registry *Registry) *CatalogHandler {
	return &CatalogHandler{registry: registry}
}

// Routes returns a chi.Router with the catalog route mounted.
func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleCatalog)
	return r
}

type catalogServer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type catalogResponse struct {
	BuiltinServers int             `json:"builtin_servers"`
	Servers        []catalogServer `json:"servers"`
}

func (h *CatalogHandler) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	names := h.registry.Names()
	servers := make([]catalogServer, 0, len(names))
	for _, name := range names {
		servers = append(servers, catalogServer{ID: ServerPrefix + name, Name: name})
	}

	httpserver.Respond(w, http.StatusOK, catalogResponse{
		BuiltinServers: len(names),
		Servers:        servers,
	})
}
