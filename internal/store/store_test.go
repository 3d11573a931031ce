package store

import (
	"path/filepath"
	"testing"
)

// setupTestStore opens a fresh store in a temp directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kfn.db"), "test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustNode creates a node or fails the test.
func mustNode(t *testing.T, s *Store, nodeType, label string, confidence float64) *Node {
	t.Helper()
	n, err := s.CreateNode(NodeSpec{Type: nodeType, Label: label, Confidence: confidence})
	if err != nil {
		t.Fatalf("creating node %q: %v", label, err)
	}
	return n
}

// mustEdge creates an edge or fails the test.
func mustEdge(t *testing.T, s *Store, sourceID, targetID, relation string) *Edge {
	t.Helper()
	e, err := s.CreateEdge(EdgeSpec{SourceID: sourceID, TargetID: targetID, Relation: relation, Confidence: 1})
	if err != nil {
		t.Fatalf("creating edge %s->%s: %v", sourceID, targetID, err)
	}
	return e
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
