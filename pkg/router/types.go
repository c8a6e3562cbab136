// Package router implements the Tool Router (spec.md §4.4): the component
// that orchestrates an outbound tool call end-to-end — client pooling,
// circuit breaking, rate limiting, and session-budget gating — across both
// in-process builtins and tenant-registered remote MCP servers.
package router

import "github.com/wardenmcp/toolgate/pkg/passport"

// McpServerConfig is the subset of a tool passport's metadata the router
// needs to dial an outbound MCP server (spec.md §4.4 step 4).
type McpServerConfig struct {
	Transport    passport.Transport
	URL          string
	Command      string
	Args         []string
	Env          map[string]string
	AuthProvider string
}

// ConfigFromMetadata extracts an McpServerConfig from a passport's opaque
// metadata map.
func ConfigFromMetadata(metadata map[string]any) McpServerConfig {
	cfg := McpServerConfig{
		Transport: passport.Transport(stringField(metadata, "transport")),
		URL:       stringField(metadata, "url"),
		Command:   stringField(metadata, "command"),
	}
	if authProvider := stringField(metadata, "auth_provider"); authProvider != "" {
		cfg.AuthProvider = authProvider
	}
	if rawArgs, ok := metadata["args"].([]any); ok {
		for _, a := range rawArgs {
			if s, ok := a.(string); ok {
				cfg.Args = append(cfg.Args, s)
			}
		}
	}
	if rawEnv, ok := metadata["env"].(map[string]any); ok {
		cfg.Env = make(map[string]string, len(rawEnv))
		for k, v := range rawEnv {
			if s, ok := v.(string); ok {
				cfg.Env[k] = s
			}
		}
	}
	return cfg
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// ToolCallResult is the outcome of one routeToolCall invocation.
type ToolCallResult struct {
	Content        string `json:"content"`
	IsError        bool   `json:"isError"`
	ServerID       string `json:"server_id"`
	ToolName       string `json:"tool_name"`
	DurationMs     int64  `json:"duration_ms"`
	ToolPassportID string `json:"tool_passport_id,omitempty"`
}

// ServerTools is one server's contribution to a routeToolList response.
type ServerTools struct {
	ServerID   string     `json:"server_id"`
	ServerName string     `json:"server_name"`
	Tools      []ToolInfo `json:"tools"`
}

// ToolInfo describes one tool exposed by a server.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListFilters narrows routeToolListFiltered's results (spec.md §4.4 public surface).
type ListFilters struct {
	Server string
	Search string
	Scopes []string // nil == allow-all; see pkg/apikey.Row.AllowsScope
}
