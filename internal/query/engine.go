// Package query implements the read-only query engine: keyword search over
// labels and properties, exact property lookup, and weighted related-node
// expansion. It is built entirely on the storage engine's read primitives.
package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"knowfed/kfn/internal/store"
)

// DefaultLimit caps search results when the caller supplies none.
const DefaultLimit = 20

// Engine serves searches against one store. All calls are local, bounded,
// synchronous operations.
type Engine struct {
	store *store.Store
}

// New creates a query engine over s.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Request describes one query. Type currently supports only "search"
// (empty means "search"); the ranking behind it is keyword matching, but a
// semantic ranker can substitute behind the same interface.
type Request struct {
	Text    string  `json:"text"`
	Type    string  `json:"type"`
	Options Options `json:"options"`
}

// Options tunes a query.
type Options struct {
	Limit int `json:"limit"`
}

// Metadata describes how a query executed.
type Metadata struct {
	ExecutionTimeMs float64 `json:"executionTimeMs"`
	TotalMatches    int     `json:"totalMatches"`
}

// Result is a ranked query response.
type Result struct {
	Nodes    []store.Node `json:"nodes"`
	Metadata Metadata     `json:"metadata"`
}

// Query runs a keyword search over node labels and stringified properties.
// Empty or whitespace-only text yields an empty result set, not an error.
// Ranking: 2 points per token found in the label, 1 per token found in the
// properties; confidence then creation order break ties.
func (e *Engine) Query(req Request) (*Result, error) {
	if req.Type != "" && req.Type != "search" {
		return nil, fmt.Errorf("unsupported query type %q", req.Type)
	}
	start := time.Now()
	result := &Result{Nodes: []store.Node{}}

	tokens := Tokenize(req.Text)
	if len(tokens) == 0 {
		result.Metadata.ExecutionTimeMs = msSince(start)
		return result, nil
	}

	nodes, err := e.store.ListNodes(store.NodeFilter{})
	if err != nil {
		return nil, fmt.Errorf("scanning nodes: %w", err)
	}

	type scored struct {
		score int
		node  store.Node
	}
	var matches []scored
	for _, n := range nodes {
		label := strings.ToLower(n.Label)
		props := ""
		if len(n.Properties) > 0 {
			if raw, err := json.Marshal(n.Properties); err == nil {
				props = strings.ToLower(string(raw))
			}
		}
		score := 0
		for _, tok := range tokens {
			if strings.Contains(label, tok) {
				score += 2
			}
			if props != "" && strings.Contains(props, tok) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{score: score, node: n})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		if matches[i].node.Confidence != matches[j].node.Confidence {
			return matches[i].node.Confidence > matches[j].node.Confidence
		}
		return matches[i].node.Seq < matches[j].node.Seq
	})

	result.Metadata.TotalMatches = len(matches)
	limit := req.Options.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	for _, m := range matches {
		result.Nodes = append(result.Nodes, m.node)
	}
	result.Metadata.ExecutionTimeMs = msSince(start)
	return result, nil
}

// FindByProperty returns live nodes whose properties[key] exactly equals
// value. The probe value is normalized through a JSON round-trip so that
// e.g. int 42 matches the stored float64 42.
func (e *Engine) FindByProperty(key string, value any) ([]store.Node, error) {
	want, err := canonicalJSON(value)
	if err != nil {
		return nil, fmt.Errorf("encoding probe value: %w", err)
	}

	nodes, err := e.store.ListNodes(store.NodeFilter{})
	if err != nil {
		return nil, fmt.Errorf("scanning nodes: %w", err)
	}

	var out []store.Node
	for _, n := range nodes {
		stored, ok := n.Properties[key]
		if !ok {
			continue
		}
		got, err := canonicalJSON(stored)
		if err != nil {
			continue
		}
		if got == want {
			out = append(out, n)
		}
	}
	return out, nil
}

func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
