// Package passport implements the Passport Store (spec.md §4.2): the single
// persistence abstraction for every registered asset — MCP server, agent,
// plugin, or mcp-identity — plus the ToolRegistry that layers tool-specific
// semantics on top of it.
package passport

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Type enumerates the kinds of asset a Passport can describe.
type Type string

const (
	TypeTool   Type = "tool"
	TypeMCP    Type = "mcp"
	TypeAgent  Type = "agent"
	TypePlugin Type = "plugin"
)

// Status is the Passport lifecycle state (spec.md §3 Passport).
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// SystemOwner is the sentinel owner for builtin, gateway-provided passports
// (spec.md §3 Passport.owner, I6).
const SystemOwner = "system"

// Passport is a catalog record for any registered asset.
type Passport struct {
	ID          string         `json:"passport_id"`
	Type        Type           `json:"type"`
	Owner       string         `json:"owner"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	Tags        []string       `json:"tags"`
	Status      Status         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// generateID returns a new passport_-prefixed identifier (spec.md §4.2
// generateId). It mirrors the prefixed-random-hex id convention used
// throughout this codebase's other id generators (see pkg/apikey's
// tg_-prefixed raw key).
func generateID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return "passport_" + hex.EncodeToString(b[:])
}
