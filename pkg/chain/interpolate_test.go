package chain

import (
	"reflect"
	"testing"
)

func TestInterpolate_ReplacesMatchingPlaceholder(t *testing.T) {
	args := map[string]any{"issue_url": "{{step1.url}}"}
	values := map[string]any{"step1": map[string]any{"url": "https://example.com/42"}}

	got := Interpolate(args, values)
	if got["issue_url"] != "https://example.com/42" {
		t.Errorf("issue_url = %v, want the resolved URL", got["issue_url"])
	}
}

func TestInterpolate_NestedPath(t *testing.T) {
	args := map[string]any{"id": "{{step1.data.id}}"}
	values := map[string]any{"step1": map[string]any{"data": map[string]any{"id": float64(7)}}}

	got := Interpolate(args, values)
	if got["id"] != "7" {
		t.Errorf("id = %v, want %q", got["id"], "7")
	}
}

func TestInterpolate_MissingStepLeftUntouched(t *testing.T) {
	args := map[string]any{"x": "{{unknown.field}}"}
	got := Interpolate(args, map[string]any{})
	if got["x"] != "{{unknown.field}}" {
		t.Errorf("x = %v, want the placeholder left untouched", got["x"])
	}
}

func TestInterpolate_MissingPathLeftUntouched(t *testing.T) {
	args := map[string]any{"x": "{{step1.missing}}"}
	values := map[string]any{"step1": map[string]any{"present": "value"}}
	got := Interpolate(args, values)
	if got["x"] != "{{step1.missing}}" {
		t.Errorf("x = %v, want the placeholder left untouched", got["x"])
	}
}

func TestInterpolate_NonPlaceholderStringUntouched(t *testing.T) {
	args := map[string]any{"x": "just a plain string"}
	got := Interpolate(args, map[string]any{"step1": map[string]any{"field": "value"}})
	if got["x"] != "just a plain string" {
		t.Errorf("x = %v, want unchanged", got["x"])
	}
}

func TestInterpolate_RecursesThroughNestedStructures(t *testing.T) {
	args := map[string]any{
		"nested": map[string]any{
			"list": []any{"{{step1.url}}", "literal"},
		},
	}
	values := map[string]any{"step1": map[string]any{"url": "resolved"}}

	got := Interpolate(args, values)
	nested := got["nested"].(map[string]any)
	list := nested["list"].([]any)
	if !reflect.DeepEqual(list, []any{"resolved", "literal"}) {
		t.Errorf("list = %v, want [resolved literal]", list)
	}
}

func TestInterpolate_NilArgsReturnsNil(t *testing.T) {
	if got := Interpolate(nil, map[string]any{}); got != nil {
		t.Errorf("Interpolate(nil, ...) = %v, want nil", got)
	}
}
