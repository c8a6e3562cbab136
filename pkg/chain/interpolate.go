package chain

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches a string consisting entirely of one
// {{stepId.path.to.field}} reference (spec.md §4.7 variable interpolation).
var placeholderPattern = regexp.MustCompile(`^\{\{([A-Za-z0-9_-]+)\.([A-Za-z0-9_.\[\]-]+)\}\}$`)

// Interpolate walks args recursively, replacing any string that matches
// {{stepId.path.to.field}} with the stringified value resolved from a prior
// step's result. A reference to a missing step or missing path is left
// untouched, per spec.md §4.7.
func Interpolate(args map[string]any, values map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out, _ := interpolateValue(args, values).(map[string]any)
	return out
}

func interpolateValue(v any, values map[string]any) any {
	switch x := v.(type) {
	case string:
		return interpolateString(x, values)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = interpolateValue(val, values)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = interpolateValue(val, values)
		}
		return out
	default:
		return v
	}
}

func interpolateString(s string, values map[string]any) any {
	m := placeholderPattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	stepID, path := m[1], m[2]

	result, ok := values[stepID]
	if !ok {
		return s
	}
	resolved, ok := resolvePath(result, path)
	if !ok {
		return s
	}
	return stringify(resolved)
}

func resolvePath(root any, path string) (any, bool) {
	cur := root
	for _, segment := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[segment]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
