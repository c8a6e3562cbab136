package audit

import (
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

func TestLog_DropsWhenFull(t *testing.T) {
	logger := slog.Default()
	w := NewWriter(nil, logger)
	// Don't start the background goroutine — nothing drains the channel.

	for i := 0; i < bufferSize; i++ {
		w.Log(Entry{ServerID: "github", ToolName: "create_issue"})
	}

	// The next log should be dropped (non-blocking), not block the test.
	w.Log(Entry{ServerID: "github", ToolName: "dropped"})

	if len(w.entries) != bufferSize {
		t.Errorf("buffer size = %d, want %d", len(w.entries), bufferSize)
	}
}

func TestLogCall_BuildsEntry(t *testing.T) {
	logger := slog.Default()
	w := NewWriter(nil, logger)

	tenantID := uuid.New()
	apiKeyID := uuid.New()
	args := map[string]any{"owner": "acme", "repo": "widgets"}

	w.LogCall(tenantID, apiKeyID, "github", "create_issue", args, "success", "", 42)

	entry := <-w.entries
	if entry.TenantID != tenantID {
		t.Errorf("TenantID = %v, want %v", entry.TenantID, tenantID)
	}
	if entry.ServerID != "github" || entry.ToolName != "create_issue" {
		t.Errorf("ServerID/ToolName = %q/%q, want github/create_issue", entry.ServerID, entry.ToolName)
	}
	if entry.Status != "success" {
		t.Errorf("Status = %q, want success", entry.Status)
	}
	if entry.ArgsHash != HashArgs(args) {
		t.Errorf("ArgsHash = %q, want %q", entry.ArgsHash, HashArgs(args))
	}
	if entry.DurationMs != 42 {
		t.Errorf("DurationMs = %d, want 42", entry.DurationMs)
	}
}

func TestHashArgs_DeterministicForSameArgs(t *testing.T) {
	args := map[string]any{"owner": "acme", "repo": "widgets"}
	h1 := HashArgs(args)
	h2 := HashArgs(args)
	if h1 != h2 {
		t.Errorf("HashArgs is not deterministic: %q != %q", h1, h2)
	}
}

func TestHashArgs_DiffersForDifferentArgs(t *testing.T) {
	a := HashArgs(map[string]any{"owner": "acme"})
	b := HashArgs(map[string]any{"owner": "globex"})
	if a == b {
		t.Errorf("HashArgs collided for distinct args: %q", a)
	}
}

func TestHashArgs_EmptyArgsIsEmptyString(t *testing.T) {
	if got := HashArgs(nil); got != "" {
		t.Errorf("HashArgs(nil) = %q, want empty", got)
	}
	if got := HashArgs(map[string]any{}); got != "" {
		t.Errorf("HashArgs({}) = %q, want empty", got)
	}
}
