package metering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// HTTPEmitter posts each LedgerEvent to a downstream usage-billing
// endpoint (spec.md §6 OPENMETER_ENABLED). A non-2xx response is treated
// as a failed delivery attempt.
type HTTPEmitter struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
}

// NewHTTPEmitter builds an HTTPEmitter posting to endpoint with apiKey as a
// Bearer credential.
func NewHTTPEmitter(endpoint, apiKey string) *HTTPEmitter {
	return &HTTPEmitter{Client: http.DefaultClient, Endpoint: endpoint, APIKey: apiKey}
}

// Emit posts event as JSON to Endpoint.
func (e *HTTPEmitter) Emit(ctx context.Context, event LedgerEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling ledger event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building ledger emit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return fmt.Errorf("emitting ledger event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ledger emit endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// NoopEmitter logs each event instead of sending it downstream — wired in
// when OPENMETER_ENABLED is false, mirroring the teacher's NoopCaller stub
// for a disabled integration.
type NoopEmitter struct {
	Logger *slog.Logger
}

// Emit logs event and always succeeds.
func (n *NoopEmitter) Emit(ctx context.Context, event LedgerEvent) error {
	n.Logger.Info("noop metering emit",
		"event_id", event.EventID,
		"tenant_id", event.TenantID,
		"server_id", event.ServerID,
		"tool_name", event.ToolName,
	)
	return nil
}

var (
	_ Emitter = (*HTTPEmitter)(nil)
	_ Emitter = (*NoopEmitter)(nil)
)
