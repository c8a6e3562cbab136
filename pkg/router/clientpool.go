package router

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wardenmcp/toolgate/pkg/passport"
)

// headerTransport injects a fixed set of headers (the resolved credential's
// Authorization header, plus any adapter-supplied extras) onto every request
// a pooled streamable-http/sse session makes.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// clientIdleTTL is CLIENT_TTL_MS from spec.md §4.4.1: entries idle longer
// than this are closed by the sweeper.
const clientIdleTTL = 30 * time.Minute

// clientSweepInterval is how often the background sweeper runs.
const clientSweepInterval = 5 * time.Minute

// poolEntry is one live MCP session, keyed by "tenant:server_id".
type poolEntry struct {
	session    *mcpsdk.ClientSession
	lastUsedAt time.Time
}

// ClientPool lazily creates and caches outbound MCP sessions keyed by
// "tenant:server_id" (spec.md §4.4.1). A background sweeper evicts entries
// idle longer than clientIdleTTL.
type ClientPool struct {
	mu      sync.Mutex
	entries map[string]*poolEntry
	client  *mcpsdk.Client

	stop chan struct{}
}

// NewClientPool builds an empty pool and starts its sweeper goroutine.
// Callers must call Close when the pool is no longer needed, to stop the
// sweeper.
func NewClientPool() *ClientPool {
	p := &ClientPool{
		entries: make(map[string]*poolEntry),
		client:  mcpsdk.NewClient(&mcpsdk.Implementation{Name: "toolgate", Version: "1.0.0"}, nil),
		stop:    make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

func poolKey(tenant, serverID string) string {
	return tenant + ":" + serverID
}

// Get returns the cached session for tenant:serverID, dialing a new one via
// cfg if none exists yet. headers (typically the resolved credential's
// Authorization header) are attached to every request the dialed session
// makes; they have no effect on an already-cached session, since the
// underlying connection is reused as-is.
func (p *ClientPool) Get(ctx context.Context, tenant, serverID string, cfg McpServerConfig, headers map[string]string) (*mcpsdk.ClientSession, error) {
	key := poolKey(tenant, serverID)

	p.mu.Lock()
	if e, ok := p.entries[key]; ok {
		e.lastUsedAt = time.Now()
		p.mu.Unlock()
		return e.session, nil
	}
	p.mu.Unlock()

	transport, err := buildTransport(ctx, cfg, headers)
	if err != nil {
		return nil, err
	}

	session, err := p.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("router: connecting to server %q: %w", serverID, err)
	}

	p.mu.Lock()
	p.entries[key] = &poolEntry{session: session, lastUsedAt: time.Now()}
	p.mu.Unlock()

	return session, nil
}

// Drop closes and evicts the cached session for tenant:serverID (spec.md
// §4.4 step 8: "on exception: drop the client from the pool").
func (p *ClientPool) Drop(tenant, serverID string) {
	key := poolKey(tenant, serverID)

	p.mu.Lock()
	e, ok := p.entries[key]
	if ok {
		delete(p.entries, key)
	}
	p.mu.Unlock()

	if ok {
		_ = e.session.Close()
	}
}

func buildTransport(ctx context.Context, cfg McpServerConfig, headers map[string]string) (mcpsdk.Transport, error) {
	switch cfg.Transport {
	case passport.TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("router: streamable-http server requires a non-empty url")
		}
		return &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: httpClientFor(headers)}, nil

	case passport.TransportSSE:
		if cfg.URL == "" {
			return nil, fmt.Errorf("router: sse server requires a non-empty url")
		}
		return &mcpsdk.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: httpClientFor(headers)}, nil

	case passport.TransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("router: stdio server requires a non-empty command")
		}
		cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return &mcpsdk.CommandTransport{Command: cmd}, nil

	default:
		return nil, fmt.Errorf("router: unsupported transport %q", cfg.Transport)
	}
}

// httpClientFor returns nil (use the SDK's default client) when there are no
// headers to inject, else a client whose transport sets them on every request.
func httpClientFor(headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return nil
	}
	return &http.Client{Transport: &headerTransport{base: http.DefaultTransport, headers: headers}}
}

func (p *ClientPool) sweepLoop() {
	ticker := time.NewTicker(clientSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweep()
		case <-p.stop:
			return
		}
	}
}

func (p *ClientPool) sweep() {
	cutoff := time.Now().Add(-clientIdleTTL)

	p.mu.Lock()
	var stale []*poolEntry
	for key, e := range p.entries {
		if e.lastUsedAt.Before(cutoff) {
			stale = append(stale, e)
			delete(p.entries, key)
		}
	}
	p.mu.Unlock()

	for _, e := range stale {
		_ = e.session.Close()
	}
}

// Close stops the sweeper and closes every cached session.
func (p *ClientPool) Close() {
	close(p.stop)

	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*poolEntry)
	p.mu.Unlock()

	for _, e := range entries {
		_ = e.session.Close()
	}
}

