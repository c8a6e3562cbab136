package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RegisterDefaults wires the three illustrative builtin servers this
// gateway ships: time, echo, and health (spec.md §4.6 concrete builtins).
func RegisterDefaults(r *Registry) {
	r.Register(timeServer())
	r.Register(echoServer())
	r.Register(healthServer())
}

func timeServer() Handle {
	return Handle{
		Name: "time",
		Tools: []ToolDef{
			{Name: "now", Description: "Returns the current UTC time, optionally formatted with a Go time layout."},
		},
		Call: func(_ context.Context, tool string, args map[string]any) (string, bool, error) {
			if tool != "now" {
				return "", false, fmt.Errorf("builtin:time has no tool %q", tool)
			}

			layout := time.RFC3339
			if l, ok := args["layout"].(string); ok && l != "" {
				layout = l
			}

			body, err := json.Marshal(map[string]string{"now": time.Now().UTC().Format(layout)})
			if err != nil {
				return "", true, err
			}
			return string(body), false, nil
		},
	}
}

func echoServer() Handle {
	return Handle{
		Name: "echo",
		Tools: []ToolDef{
			{Name: "echo", Description: "Returns its input arguments verbatim as JSON text."},
		},
		Call: func(_ context.Context, tool string, args map[string]any) (string, bool, error) {
			if tool != "echo" {
				return "", false, fmt.Errorf("builtin:echo has no tool %q", tool)
			}

			body, err := json.Marshal(args)
			if err != nil {
				return "", true, err
			}
			return string(body), false, nil
		},
	}
}

func healthServer() Handle {
	return Handle{
		Name: "health",
		Tools: []ToolDef{
			{Name: "ping", Description: "Returns {\"ok\": true}; used by catalog/health end-to-end checks."},
		},
		Call: func(_ context.Context, tool string, _ map[string]any) (string, bool, error) {
			if tool != "ping" {
				return "", false, fmt.Errorf("builtin:health has no tool %q", tool)
			}
			return `{"ok":true}`, false, nil
		},
	}
}
