// Package builtin implements the Builtin Registry (spec.md §4.6): a
// process-wide map from name to an in-process tool handle, dispatched
// through the "builtin:" server id prefix rather than an outbound MCP
// connection.
package builtin

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ServerPrefix is the server_id prefix every builtin server carries
// (spec.md I6).
const ServerPrefix = "builtin:"

// ToolDef describes one tool a builtin server exposes.
type ToolDef struct {
	Name        string
	Description string
}

// Handle is one registered builtin server's pair of handles.
type Handle struct {
	Name  string
	Tools []ToolDef
	Call  func(ctx context.Context, tool string, args map[string]any) (string, bool, error) // (content, isError, err)
}

// Registry is the process-wide builtin → handle map.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]Handle
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{servers: make(map[string]Handle)}
}

// Register adds a builtin server's handle under name.
func (r *Registry) Register(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[h.Name] = h
}

// Get returns the handle registered under name.
func (r *Registry) Get(name string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.servers[name]
	return h, ok
}

// Call invokes name's tool with args.
func (r *Registry) Call(ctx context.Context, name, tool string, args map[string]any) (content string, isError bool, err error) {
	h, ok := r.Get(name)
	if !ok {
		return "", false, fmt.Errorf("builtin: server %q not registered", name)
	}
	return h.Call(ctx, tool, args)
}

// IsBuiltinServer reports whether id carries the builtin: prefix.
func IsBuiltinServer(id string) bool {
	return strings.HasPrefix(id, ServerPrefix)
}

// ExtractBuiltinName strips the builtin: prefix from id.
func ExtractBuiltinName(id string) string {
	return strings.TrimPrefix(id, ServerPrefix)
}

// ListBuiltinTools lists every registered server's tools, tolerating
// per-server failures: a failing server contributes an empty tool array
// instead of failing the whole listing (spec.md §4.6).
func (r *Registry) ListBuiltinTools() map[string][]ToolDef {
	r.mu.RLock()
	names := make([]string, 0, len(r.servers))
	handles := make(map[string]Handle, len(r.servers))
	for name, h := range r.servers {
		names = append(names, name)
		handles[name] = h
	}
	r.mu.RUnlock()

	result := make(map[string][]ToolDef, len(names))
	for _, name := range names {
		result[name] = handles[name].Tools
	}
	return result
}

// Names returns every registered builtin server name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	return names
}
