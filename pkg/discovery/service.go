package discovery

import (
	"context"
	"sync/atomic"

	"github.com/wardenmcp/toolgate/pkg/builtin"
	"github.com/wardenmcp/toolgate/pkg/passport"
)

// Service owns the catalog's live Index and knows how to rebuild it from
// the Passport Store and Builtin Registry (spec.md §4.8: "index is
// immutable once built for a given startup; rebuilds require a full
// index() call").
type Service struct {
	tools    *passport.ToolRegistry
	builtins *builtin.Registry
	current  atomic.Pointer[Index]
}

// NewService builds a Service with an empty index; call Rebuild before
// the first Search.
func NewService(tools *passport.ToolRegistry, builtins *builtin.Registry) *Service {
	s := &Service{tools: tools, builtins: builtins}
	s.current.Store(NewIndex(nil))
	return s
}

// Rebuild recomputes the catalog index from every active tool passport
// (system-wide, not tenant-scoped — RBAC filtering happens after Search,
// per spec.md §4.8) plus the builtin registry, and atomically swaps it in.
// Registered-server tool names come from metadata.tools_cache (the most
// recently observed listing, spec.md §4.2 updateTools); servers never
// observed contribute no documents until their next live listing.
func (s *Service) Rebuild(ctx context.Context) error {
	var entries []Entry

	for _, name := range s.builtins.Names() {
		serverID := builtin.ServerPrefix + name
		for _, t := range s.builtins.ListBuiltinTools()[name] {
			entries = append(entries, Entry{ServerID: serverID, ServerName: name, ToolName: t.Name, Description: t.Description})
		}
	}

	passports, err := s.tools.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, p := range passports {
		for _, name := range cachedToolNames(p.Metadata) {
			entries = append(entries, Entry{ServerID: p.ID, ServerName: p.Name, ToolName: name})
		}
	}

	s.current.Store(NewIndex(entries))
	return nil
}

// cachedToolNames extracts metadata.tools_cache, tolerating both the
// []string shape UpdateTools writes directly and the []any shape it comes
// back as after a JSON round-trip through storage.
func cachedToolNames(metadata map[string]any) []string {
	raw, ok := metadata["tools_cache"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

// Search runs the query against the current index, then drops any result
// the caller's scopes don't permit (nil scopes = allow-all, matching
// pkg/apikey.Row.AllowsScope's semantics).
func (s *Service) Search(query string, topK int, scopes []string) []Result {
	idx := s.current.Load()
	results := idx.Search(query, topK)

	if scopes == nil {
		return results
	}
	filtered := make([]Result, 0, len(results))
	for _, r := range results {
		if scopeAllows(scopes, r.ServerID, r.ToolName) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// scopeAllows mirrors pkg/apikey.Row.AllowsScope's pattern semantics
// (server:tool / server:* / *:tool / *), duplicated here the same way
// pkg/router keeps its own copy rather than import pkg/apikey for a handful
// of comparisons.
func scopeAllows(scopes []string, serverID, toolName string) bool {
	exact := serverID + ":" + toolName
	serverWild := serverID + ":*"
	toolWild := "*:" + toolName
	for _, pattern := range scopes {
		switch pattern {
		case exact, serverWild, toolWild, "*":
			return true
		}
	}
	return false
}
