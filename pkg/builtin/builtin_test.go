package builtin

import (
	"context"
	"encoding/json"
	"testing"
)

func TestIsBuiltinServer(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"builtin:time", true},
		{"builtin:", true},
		{"github", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsBuiltinServer(tt.id); got != tt.want {
			t.Errorf("IsBuiltinServer(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestExtractBuiltinName(t *testing.T) {
	if got := ExtractBuiltinName("builtin:time"); got != "time" {
		t.Errorf("ExtractBuiltinName() = %q, want %q", got, "time")
	}
}

func TestRegisterDefaults_PingTool(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	content, isError, err := r.Call(context.Background(), "health", "ping", nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if isError {
		t.Fatalf("Call() isError = true, want false")
	}

	var body map[string]bool
	if err := json.Unmarshal([]byte(content), &body); err != nil {
		t.Fatalf("unmarshaling ping response: %v", err)
	}
	if !body["ok"] {
		t.Errorf("ping response = %v, want ok=true", body)
	}
}

func TestRegisterDefaults_EchoRoundTrip(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	args := map[string]any{"hello": "world"}
	content, _, err := r.Call(context.Background(), "echo", "echo", args)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(content), &got); err != nil {
		t.Fatalf("unmarshaling echo response: %v", err)
	}
	if got["hello"] != "world" {
		t.Errorf("echo response = %v, want hello=world", got)
	}
}

func TestRegisterDefaults_UnknownToolFails(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	_, _, err := r.Call(context.Background(), "health", "not-a-tool", nil)
	if err == nil {
		t.Error("expected error calling unknown tool")
	}
}

func TestListBuiltinTools_HealthServerHasOneTool(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	tools := r.ListBuiltinTools()
	if len(tools["health"]) != 1 {
		t.Errorf("health tools = %v, want 1 tool", tools["health"])
	}
}
