// Package discovery implements the TF-IDF tool search (spec.md §4.8): a
// small in-memory inverted index over the tool catalog, rebuilt on demand
// and queried by cosine similarity.
package discovery

import (
	"math"
	"sort"
	"strings"
)

// Entry is one document fed to Index: a server/tool pair and the text
// that gets tokenized into its document ("{server_name} {tool_name}
// {description}").
type Entry struct {
	ServerID    string
	ServerName  string
	ToolName    string
	Description string
}

// Result is one ranked hit returned by Search.
type Result struct {
	ServerID string  `json:"server_id"`
	ToolName string  `json:"tool_name"`
	Score    float64 `json:"score"`
}

type document struct {
	entry  Entry
	terms  map[string]int // term frequency within this document
	length int            // total token count, for TF normalization
	norm   float64        // TF-IDF vector norm, precomputed at index time
}

// Index is an immutable TF-IDF inverted index. Build a new one with
// NewIndex whenever the catalog changes; there is no incremental update.
type Index struct {
	docs        []document
	df          map[string]int // document frequency per term
	totalDocs   int
	postings    map[string][]int // term -> doc indexes containing it, for candidate pruning
}

// NewIndex tokenizes every entry's document text, computes document
// frequencies, and precomputes each document's TF-IDF vector norm so
// Search only has to do a single dot-product pass per query.
func NewIndex(entries []Entry) *Index {
	idx := &Index{
		df:       make(map[string]int),
		postings: make(map[string][]int),
	}

	docs := make([]document, len(entries))
	for i, e := range entries {
		text := e.ServerName + " " + e.ToolName + " " + e.Description
		terms := tokenize(text)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		docs[i] = document{entry: e, terms: tf, length: len(terms)}
		for t := range tf {
			idx.df[t]++
			idx.postings[t] = append(idx.postings[t], i)
		}
	}
	idx.docs = docs
	idx.totalDocs = len(docs)

	for i := range idx.docs {
		idx.docs[i].norm = vectorNorm(idx.docs[i].terms, idx.docs[i].length, idx.df, idx.totalDocs)
	}

	return idx
}

// Search tokenizes query, scores every document sharing at least one
// term by cosine similarity over TF-IDF vectors, and returns the topK
// highest-scoring results in descending score order. Ties break by
// insertion order (stable sort), so repeated searches are deterministic.
func (idx *Index) Search(query string, topK int) []Result {
	if topK <= 0 || idx.totalDocs == 0 {
		return nil
	}

	qTerms := tokenize(query)
	if len(qTerms) == 0 {
		return nil
	}
	qtf := make(map[string]int, len(qTerms))
	for _, t := range qTerms {
		qtf[t]++
	}
	qnorm := vectorNorm(qtf, len(qTerms), idx.df, idx.totalDocs)
	if qnorm == 0 {
		return nil
	}

	candidates := make(map[int]bool)
	for t := range qtf {
		for _, docIdx := range idx.postings[t] {
			candidates[docIdx] = true
		}
	}

	order := make([]int, 0, len(candidates))
	for docIdx := range candidates {
		order = append(order, docIdx)
	}
	sort.Ints(order)

	results := make([]Result, 0, len(candidates))
	for _, docIdx := range order {
		doc := idx.docs[docIdx]
		if doc.norm == 0 {
			continue
		}
		var dot float64
		for t, qCount := range qtf {
			dCount, ok := doc.terms[t]
			if !ok {
				continue
			}
			dot += tfidf(qCount, len(qTerms), t, idx.df, idx.totalDocs) * tfidf(dCount, doc.length, t, idx.df, idx.totalDocs)
		}
		score := dot / (qnorm * doc.norm)
		if score <= 0 {
			continue
		}
		results = append(results, Result{ServerID: doc.entry.ServerID, ToolName: doc.entry.ToolName, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// vectorNorm computes the L2 norm of a document's TF-IDF vector.
func vectorNorm(tf map[string]int, docLen int, df map[string]int, totalDocs int) float64 {
	var sumSquares float64
	for t, count := range tf {
		w := tfidf(count, docLen, t, df, totalDocs)
		sumSquares += w * w
	}
	return math.Sqrt(sumSquares)
}

// tfidf computes the TF-IDF weight of a term with the given raw count
// and owning-document length, using smoothed IDF (1 + ln(N/(1+df))) so a
// term present in every document still contributes a small positive
// weight instead of zeroing out.
func tfidf(count, docLen int, term string, df map[string]int, totalDocs int) float64 {
	if docLen == 0 {
		return 0
	}
	tf := float64(count) / float64(docLen)
	idf := 1 + math.Log(float64(totalDocs)/float64(1+df[term]))
	return tf * idf
}

// tokenize lowercases text, splits on any non-alphanumeric rune, and
// drops tokens shorter than 2 characters (spec.md §4.8).
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		isAlphaNum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		return !isAlphaNum
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
