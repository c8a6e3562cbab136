package router

import "sync"

// HealthStatus is the latest observed health label for a server.
type HealthStatus struct {
	Healthy bool
	Reason  string
}

// HealthTracker records markHealthy/markUnhealthy transitions per server_id
// (spec.md §4.4.4). It has no external side-effect beyond observability.
type HealthTracker struct {
	mu     sync.Mutex
	status map[string]HealthStatus
}

// NewHealthTracker builds an empty tracker.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{status: make(map[string]HealthStatus)}
}

// MarkHealthy records serverID as healthy.
func (h *HealthTracker) MarkHealthy(serverID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status[serverID] = HealthStatus{Healthy: true}
}

// MarkUnhealthy records serverID as unhealthy with reason.
func (h *HealthTracker) MarkUnhealthy(serverID, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status[serverID] = HealthStatus{Healthy: false, Reason: reason}
}

// GetHealthStatus returns the latest recorded status for serverID. Servers
// never observed default to healthy with no reason.
func (h *HealthTracker) GetHealthStatus(serverID string) HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	status, ok := h.status[serverID]
	if !ok {
		return HealthStatus{Healthy: true}
	}
	return status
}
