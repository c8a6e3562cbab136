package passport

import (
	"context"
	"fmt"

	"github.com/wardenmcp/toolgate/internal/apierr"
)

// Transport is the connection kind an MCP server passport describes
// (spec.md §3 MCPServerMetadata).
type Transport string

const (
	TransportStreamableHTTP Transport = "streamable-http"
	TransportSSE            Transport = "sse"
	TransportStdio          Transport = "stdio"
	TransportBuiltin        Transport = "builtin"
)

// RegisterInput is the shape accepted by ToolRegistry.Register.
type RegisterInput struct {
	Name         string
	Description  string
	Transport    Transport
	URL          string
	Command      string
	Args         []string
	Env          map[string]string
	AuthProvider string
	Tags         []string
	Extra        map[string]any // additional free-form metadata fields
}

// ToolRegistry wraps the Passport Store with domain semantics for
// type=tool passports (spec.md §4.2 ToolRegistry).
type ToolRegistry struct {
	store *Store
}

// NewToolRegistry builds a ToolRegistry over the given Passport Store.
func NewToolRegistry(store *Store) *ToolRegistry {
	return &ToolRegistry{store: store}
}

// Register validates input and writes a new active tool passport owned by
// tenant (spec.md §4.2 register).
func (r *ToolRegistry) Register(ctx context.Context, tenant string, input RegisterInput) (Passport, error) {
	if err := validateTransport(input); err != nil {
		return Passport{}, err
	}

	metadata := map[string]any{"transport": string(input.Transport)}
	for k, v := range input.Extra {
		metadata[k] = v
	}
	if input.URL != "" {
		metadata["url"] = input.URL
	}
	if input.Command != "" {
		metadata["command"] = input.Command
	}
	if len(input.Args) > 0 {
		metadata["args"] = input.Args
	}
	if len(input.Env) > 0 {
		metadata["env"] = input.Env
	}
	if input.AuthProvider != "" {
		metadata["auth_provider"] = input.AuthProvider
	}

	return r.store.Create(ctx, CreateParams{
		Type:        TypeTool,
		Owner:       tenant,
		Name:        input.Name,
		Description: input.Description,
		Metadata:    metadata,
		Tags:        input.Tags,
	})
}

func validateTransport(input RegisterInput) error {
	switch input.Transport {
	case TransportStreamableHTTP, TransportSSE:
		if input.URL == "" {
			return apierr.New(apierr.BadRequest, fmt.Sprintf("url is required for transport %q", input.Transport))
		}
	case TransportStdio:
		if input.Command == "" {
			return apierr.New(apierr.BadRequest, "command is required for transport \"stdio\"")
		}
	case TransportBuiltin:
		// builtin passports are created by the gateway itself, not via Register
		return apierr.New(apierr.BadRequest, "transport \"builtin\" cannot be registered")
	default:
		return apierr.New(apierr.BadRequest, fmt.Sprintf("unsupported transport %q", input.Transport))
	}
	return nil
}

// Get returns the raw passport by id. The caller is responsible for the
// owner==tenant check (spec.md §4.2 get, I3).
func (r *ToolRegistry) Get(ctx context.Context, id string) (Passport, error) {
	return r.store.Get(ctx, id)
}

// List returns active tool passports owned by tenant, paginated.
func (r *ToolRegistry) List(ctx context.Context, tenant string, limit, offset int) ([]Passport, int, error) {
	return r.store.List(ctx, Filters{
		Type:   TypeTool,
		Owner:  tenant,
		Status: StatusActive,
	}, limit, offset)
}

// ListAll returns every active tool passport regardless of owner — the
// system-wide view pkg/discovery needs to build its catalog index
// (Filters.Owner empty means "any", per spec.md §4.2 list).
func (r *ToolRegistry) ListAll(ctx context.Context) ([]Passport, error) {
	passports, _, err := r.store.List(ctx, Filters{
		Type:   TypeTool,
		Status: StatusActive,
	}, 0, 0)
	return passports, err
}

// Remove soft-deletes a tool passport. Idempotent.
func (r *ToolRegistry) Remove(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}

// UpdateTools stores the most recently observed tool name list under
// metadata.tools_cache (spec.md §4.2 updateTools; used by discovery/display).
func (r *ToolRegistry) UpdateTools(ctx context.Context, id string, names []string) (Passport, error) {
	return r.store.UpdateMetadataField(ctx, id, "tools_cache", names)
}
