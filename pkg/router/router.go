package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wardenmcp/toolgate/internal/apierr"
	"github.com/wardenmcp/toolgate/pkg/builtin"
	"github.com/wardenmcp/toolgate/pkg/credential"
	"github.com/wardenmcp/toolgate/pkg/passport"
	"github.com/wardenmcp/toolgate/pkg/session"
)

// CallOpts are the optional per-call controls accepted by RouteToolCall
// (spec.md §4.4 public surface: an optional session_id gates the call
// against a Session Budget before anything else runs).
type CallOpts struct {
	SessionID string
}

// Router ties the client pool, circuit breaker, rate limiter, and health
// tracker to the passport store, credential chain, session store, and
// builtin registry to implement the dispatch algorithm of spec.md §4.4.
type Router struct {
	Clients     *ClientPool
	Breaker     *CircuitBreaker
	Limiter     *RateLimiter
	Health      *HealthTracker
	Tools       *passport.ToolRegistry
	Credentials *credential.Composite
	Sessions    *session.Store
	Builtins    *builtin.Registry
}

// New builds a Router over its dependencies.
func New(
	clients *ClientPool,
	breaker *CircuitBreaker,
	limiter *RateLimiter,
	health *HealthTracker,
	tools *passport.ToolRegistry,
	credentials *credential.Composite,
	sessions *session.Store,
	builtins *builtin.Registry,
) *Router {
	return &Router{
		Clients:     clients,
		Breaker:     breaker,
		Limiter:     limiter,
		Health:      health,
		Tools:       tools,
		Credentials: credentials,
		Sessions:    sessions,
		Builtins:    builtins,
	}
}

// RouteToolCall dispatches one tool call end to end (spec.md §4.4 steps
// 1-8): session gate, builtin short-circuit, passport lookup and ownership
// check, credential resolution, circuit-breaker and rate-limiter gating,
// client-pool acquisition, invocation, and failure bookkeeping.
func (rt *Router) RouteToolCall(ctx context.Context, tenant, serverID, toolName string, args map[string]any, opts CallOpts) (*ToolCallResult, error) {
	if opts.SessionID != "" {
		decision := rt.Sessions.Enforce(opts.SessionID, serverID, toolName)
		if !decision.Allowed {
			return nil, apierr.WithCode(string(decision.Code), decision.Reason)
		}
	}

	if builtin.IsBuiltinServer(serverID) {
		return rt.callBuiltin(ctx, opts.SessionID, serverID, toolName, args)
	}

	p, err := rt.Tools.Get(ctx, serverID)
	if err != nil {
		return nil, apierr.New(apierr.NotFound, fmt.Sprintf("server %q not found", serverID))
	}
	if p.Owner != tenant && p.Owner != passport.SystemOwner {
		return nil, apierr.New(apierr.NotFound, fmt.Sprintf("server %q not found", serverID))
	}

	cfg := ConfigFromMetadata(p.Metadata)

	headers, err := rt.resolveAuthHeaders(ctx, tenant, cfg.AuthProvider)
	if err != nil {
		return nil, err
	}

	if !rt.Breaker.Allow(serverID) {
		return nil, apierr.New(apierr.CircuitOpen, fmt.Sprintf("circuit open for server %q", serverID))
	}
	if allowed, retryAfterMs := rt.Limiter.Consume(serverID); !allowed {
		return nil, apierr.New(apierr.RateLimited, fmt.Sprintf("rate limited for server %q, retry after %dms", serverID, retryAfterMs))
	}

	sess, err := rt.Clients.Get(ctx, tenant, serverID, cfg, headers)
	if err != nil {
		rt.Health.MarkUnhealthy(serverID, err.Error())
		rt.Breaker.RecordFailure(serverID)
		return nil, apierr.New(apierr.UpstreamError, fmt.Sprintf("connecting to server %q: %v", serverID, err))
	}

	start := time.Now()
	callResult, err := sess.CallTool(ctx, &mcpsdk.CallToolParams{Name: toolName, Arguments: args})
	duration := time.Since(start).Milliseconds()

	if err != nil {
		rt.Clients.Drop(tenant, serverID)
		rt.Health.MarkUnhealthy(serverID, err.Error())
		rt.Breaker.RecordFailure(serverID)

		if ctx.Err() != nil {
			return nil, apierr.New(apierr.Timeout, fmt.Sprintf("tool call to %q timed out", serverID))
		}
		return nil, apierr.New(apierr.UpstreamError, fmt.Sprintf("tool call to %q failed: %v", serverID, err))
	}

	rt.Health.MarkHealthy(serverID)
	rt.Breaker.RecordSuccess(serverID)

	content := concatTextContent(callResult.Content)
	if opts.SessionID != "" {
		rt.Sessions.RecordUsage(opts.SessionID, 0)
	}

	return &ToolCallResult{
		Content:        content,
		IsError:        callResult.IsError,
		ServerID:       serverID,
		ToolName:       toolName,
		DurationMs:     duration,
		ToolPassportID: p.ID,
	}, nil
}

func (rt *Router) callBuiltin(ctx context.Context, sessionID, serverID, toolName string, args map[string]any) (*ToolCallResult, error) {
	start := time.Now()
	name := builtin.ExtractBuiltinName(serverID)
	content, isError, err := rt.Builtins.Call(ctx, name, toolName, args)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		return nil, apierr.New(apierr.NotFound, err.Error())
	}

	if sessionID != "" {
		rt.Sessions.RecordUsage(sessionID, 0)
	}

	return &ToolCallResult{
		Content:    content,
		IsError:    isError,
		ServerID:   serverID,
		ToolName:   toolName,
		DurationMs: duration,
	}, nil
}

// resolveAuthHeaders resolves the outbound Authorization (and any extra)
// headers for a server whose passport names an auth_provider (spec.md §4.4
// step 4). A server with no auth_provider carries no credential.
func (rt *Router) resolveAuthHeaders(ctx context.Context, tenant, provider string) (map[string]string, error) {
	if provider == "" || rt.Credentials == nil {
		return nil, nil
	}

	result, err := rt.Credentials.GetToken(ctx, tenant, provider)
	if err != nil {
		return nil, apierr.New(apierr.UpstreamError, fmt.Sprintf("resolving credential for provider %q: %v", provider, err))
	}
	if result == nil {
		return nil, nil
	}

	headers := make(map[string]string, len(result.Headers)+1)
	for k, v := range result.Headers {
		headers[k] = v
	}
	switch result.Type {
	case credential.TokenBearer:
		headers["Authorization"] = "Bearer " + result.Token
	case credential.TokenBasic:
		headers["Authorization"] = "Basic " + result.Token
	default:
		headers["Authorization"] = result.Token
	}
	return headers, nil
}

func concatTextContent(content []mcpsdk.Content) string {
	var sb strings.Builder
	for _, c := range content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

// RouteToolList lists every tool exposed by every server reachable by
// tenant: its registered MCP server passports plus the builtin registry.
func (rt *Router) RouteToolList(ctx context.Context, tenant string) ([]ServerTools, error) {
	return rt.RouteToolListFiltered(ctx, tenant, ListFilters{})
}

// RouteToolListFiltered is RouteToolList narrowed by server, a substring
// search over tool name/description, and (if non-nil) an api-key scope list.
func (rt *Router) RouteToolListFiltered(ctx context.Context, tenant string, filters ListFilters) ([]ServerTools, error) {
	var out []ServerTools

	for _, name := range rt.Builtins.Names() {
		serverID := builtin.ServerPrefix + name
		if filters.Server != "" && filters.Server != serverID {
			continue
		}
		tools := rt.Builtins.ListBuiltinTools()[name]
		st := ServerTools{ServerID: serverID, ServerName: name}
		for _, t := range tools {
			if !matchesFilters(serverID, t.Name, t.Description, filters) {
				continue
			}
			st.Tools = append(st.Tools, ToolInfo{Name: t.Name, Description: t.Description})
		}
		if len(st.Tools) > 0 {
			out = append(out, st)
		}
	}

	passports, _, err := rt.Tools.List(ctx, tenant, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, p := range passports {
		if filters.Server != "" && filters.Server != p.ID {
			continue
		}
		cfg := ConfigFromMetadata(p.Metadata)
		st := ServerTools{ServerID: p.ID, ServerName: p.Name}

		headers, err := rt.resolveAuthHeaders(ctx, tenant, cfg.AuthProvider)
		if err != nil {
			rt.Health.MarkUnhealthy(p.ID, err.Error())
			continue
		}

		sess, err := rt.Clients.Get(ctx, tenant, p.ID, cfg, headers)
		if err != nil {
			rt.Health.MarkUnhealthy(p.ID, err.Error())
			continue
		}
		for tool, terr := range sess.Tools(ctx, nil) {
			if terr != nil {
				rt.Health.MarkUnhealthy(p.ID, terr.Error())
				break
			}
			if !matchesFilters(p.ID, tool.Name, tool.Description, filters) {
				continue
			}
			st.Tools = append(st.Tools, ToolInfo{Name: tool.Name, Description: tool.Description})
		}
		if len(st.Tools) > 0 {
			out = append(out, st)
		}
	}

	return out, nil
}

func matchesFilters(serverID, toolName, description string, filters ListFilters) bool {
	if filters.Scopes != nil && !scopeAllows(filters.Scopes, serverID, toolName) {
		return false
	}
	if filters.Search == "" {
		return true
	}
	needle := strings.ToLower(filters.Search)
	return strings.Contains(strings.ToLower(toolName), needle) || strings.Contains(strings.ToLower(description), needle)
}

// scopeAllows mirrors pkg/apikey.Row.AllowsScope's pattern semantics
// (server:tool / server:* / *:tool / *) for filtering a tool listing by an
// already-resolved scope list.
func scopeAllows(scopes []string, serverID, toolName string) bool {
	for _, scope := range scopes {
		if scope == "*" {
			return true
		}
		parts := strings.SplitN(scope, ":", 2)
		if len(parts) != 2 {
			continue
		}
		serverPart, toolPart := parts[0], parts[1]
		if (serverPart == "*" || serverPart == serverID) && (toolPart == "*" || toolPart == toolName) {
			return true
		}
	}
	return false
}
