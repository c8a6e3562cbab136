package discovery

import "testing"

func sampleEntries() []Entry {
	return []Entry{
		{ServerID: "builtin:time", ServerName: "time", ToolName: "now", Description: "returns the current UTC time"},
		{ServerID: "builtin:echo", ServerName: "echo", ToolName: "echo", Description: "returns its input args verbatim"},
		{ServerID: "builtin:health", ServerName: "health", ToolName: "ping", Description: "returns ok true"},
		{ServerID: "passport_1", ServerName: "github", ToolName: "create_issue", Description: "create a new issue in a github repository"},
		{ServerID: "passport_1", ServerName: "github", ToolName: "list_issues", Description: "list open issues in a github repository"},
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases", "Echo ECHO", []string{"echo", "echo"}},
		{"splits non-alphanumeric", "create-issue: now!", []string{"create", "issue", "now"}},
		{"drops short tokens", "a bb c dd", []string{"bb", "dd"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("tokenize(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSearch_TopOneIsExactToolNameMatch(t *testing.T) {
	entries := sampleEntries()
	idx := NewIndex(entries)

	for _, e := range entries {
		results := idx.Search(e.ToolName, 1)
		if len(results) == 0 {
			t.Fatalf("Search(%q, 1) returned no results", e.ToolName)
		}
		if results[0].ToolName != e.ToolName {
			t.Errorf("Search(%q, 1)[0].ToolName = %q, want %q", e.ToolName, results[0].ToolName, e.ToolName)
		}
	}
}

func TestSearch_RespectsTopK(t *testing.T) {
	idx := NewIndex(sampleEntries())
	results := idx.Search("issue github", 1)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
}

func TestSearch_ScoresDescending(t *testing.T) {
	idx := NewIndex(sampleEntries())
	results := idx.Search("github issue", 10)
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not descending: %v", results)
		}
	}
}

func TestSearch_NoMatchReturnsEmpty(t *testing.T) {
	idx := NewIndex(sampleEntries())
	results := idx.Search("zzzznomatch", 5)
	if len(results) != 0 {
		t.Errorf("Search(unmatched query) = %v, want empty", results)
	}
}

func TestSearch_EmptyIndexReturnsEmpty(t *testing.T) {
	idx := NewIndex(nil)
	if results := idx.Search("anything", 5); len(results) != 0 {
		t.Errorf("Search on empty index = %v, want empty", results)
	}
}

func TestSearch_ZeroOrNegativeTopKReturnsEmpty(t *testing.T) {
	idx := NewIndex(sampleEntries())
	if results := idx.Search("echo", 0); results != nil {
		t.Errorf("Search(topK=0) = %v, want nil", results)
	}
	if results := idx.Search("echo", -1); results != nil {
		t.Errorf("Search(topK=-1) = %v, want nil", results)
	}
}

func TestSearch_BlankQueryReturnsEmpty(t *testing.T) {
	idx := NewIndex(sampleEntries())
	if results := idx.Search("   ", 5); len(results) != 0 {
		t.Errorf("Search(blank query) = %v, want empty", results)
	}
}
