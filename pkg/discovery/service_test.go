package discovery

import "testing"

func TestCachedToolNames(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]any
		want int
	}{
		{"missing key", map[string]any{}, 0},
		{"string slice", map[string]any{"tools_cache": []string{"a", "b"}}, 2},
		{"any slice from json round-trip", map[string]any{"tools_cache": []any{"a", "b", "c"}}, 3},
		{"any slice with non-string elements ignored", map[string]any{"tools_cache": []any{"a", 7, "c"}}, 2},
		{"wrong type", map[string]any{"tools_cache": "not-a-list"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cachedToolNames(tt.meta); len(got) != tt.want {
				t.Errorf("cachedToolNames() = %v, want len %d", got, tt.want)
			}
		})
	}
}

func TestScopeAllows(t *testing.T) {
	tests := []struct {
		name     string
		scopes   []string
		serverID string
		tool     string
		want     bool
	}{
		{"exact match", []string{"github:create_issue"}, "github", "create_issue", true},
		{"server wildcard", []string{"github:*"}, "github", "list_issues", true},
		{"tool wildcard", []string{"*:ping"}, "health", "ping", true},
		{"global wildcard", []string{"*"}, "anything", "anything", true},
		{"no match", []string{"github:create_issue"}, "github", "delete_repo", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scopeAllows(tt.scopes, tt.serverID, tt.tool); got != tt.want {
				t.Errorf("scopeAllows() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_SearchFiltersByScope(t *testing.T) {
	s := &Service{}
	s.current.Store(NewIndex([]Entry{
		{ServerID: "github", ServerName: "github", ToolName: "create_issue", Description: "create a github issue"},
		{ServerID: "github", ServerName: "github", ToolName: "delete_repo", Description: "delete a github repository"},
	}))

	results := s.Search("github", 10, []string{"github:create_issue"})
	if len(results) != 1 || results[0].ToolName != "create_issue" {
		t.Errorf("Search() = %v, want only create_issue", results)
	}
}

func TestService_SearchNilScopesAllowsAll(t *testing.T) {
	s := &Service{}
	s.current.Store(NewIndex([]Entry{
		{ServerID: "github", ServerName: "github", ToolName: "create_issue", Description: "create a github issue"},
		{ServerID: "github", ServerName: "github", ToolName: "delete_repo", Description: "delete a github repository"},
	}))

	results := s.Search("github", 10, nil)
	if len(results) != 2 {
		t.Errorf("Search() with nil scopes = %v, want both results", results)
	}
}

func TestService_SearchOnUnbuiltIndexIsEmpty(t *testing.T) {
	s := NewService(nil, nil)
	if results := s.Search("anything", 5, nil); len(results) != 0 {
		t.Errorf("Search() on fresh service = %v, want empty", results)
	}
}
