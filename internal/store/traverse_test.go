package store

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestFindShortestPath_Chain(t *testing.T) {
	s := setupTestStore(t)
	a := mustNode(t, s, "entity", "A", 1)
	b := mustNode(t, s, "entity", "B", 1)
	c := mustNode(t, s, "entity", "C", 1)
	ab := mustEdge(t, s, a.ID, b.ID, "next")
	bc := mustEdge(t, s, b.ID, c.ID, "next")

	path, err := s.FindShortestPath(PathQuery{StartNodeID: a.ID, EndNodeID: c.ID, MaxHops: 2})
	if err != nil {
		t.Fatal(err)
	}
	if path == nil {
		t.Fatal("expected a path")
	}
	if path.Hops() != 2 {
		t.Fatalf("expected 2 hops, got %d", path.Hops())
	}
	wantNodes := []string{a.ID, b.ID, c.ID}
	for i, n := range path.Nodes {
		if n.ID != wantNodes[i] {
			t.Errorf("node %d: got %s, want %s", i, n.ID, wantNodes[i])
		}
	}
	if path.Edges[0].ID != ab.ID || path.Edges[1].ID != bc.ID {
		t.Errorf("unexpected edge sequence: %s, %s", path.Edges[0].ID, path.Edges[1].ID)
	}

	// Too few hops allowed: no path.
	short, err := s.FindShortestPath(PathQuery{StartNodeID: a.ID, EndNodeID: c.ID, MaxHops: 1})
	if err != nil {
		t.Fatal(err)
	}
	if short != nil {
		t.Errorf("maxHops=1 should find no path, got %d hops", short.Hops())
	}
}

func TestFindShortestPath_BidirectionalEdge(t *testing.T) {
	s := setupTestStore(t)
	a := mustNode(t, s, "entity", "A", 1)
	b := mustNode(t, s, "entity", "B", 1)
	if _, err := s.CreateEdge(EdgeSpec{SourceID: b.ID, TargetID: a.ID, Relation: "linked", Bidirectional: true, Confidence: 1}); err != nil {
		t.Fatal(err)
	}

	// Stored b->a, traversed a->b via the bidirectional flag.
	path, err := s.FindShortestPath(PathQuery{StartNodeID: a.ID, EndNodeID: b.ID, MaxHops: 3})
	if err != nil {
		t.Fatal(err)
	}
	if path == nil || path.Hops() != 1 {
		t.Fatalf("expected a 1-hop path over the bidirectional edge, got %+v", path)
	}
}

func TestFindShortestPath_DirectedEdgeNotReversible(t *testing.T) {
	s := setupTestStore(t)
	a := mustNode(t, s, "entity", "A", 1)
	b := mustNode(t, s, "entity", "B", 1)
	mustEdge(t, s, a.ID, b.ID, "points")

	path, err := s.FindShortestPath(PathQuery{StartNodeID: b.ID, EndNodeID: a.ID, MaxHops: 5})
	if err != nil {
		t.Fatal(err)
	}
	if path != nil {
		t.Error("directed edge must not be traversable backwards")
	}
}

func TestFindShortestPath_SameNode(t *testing.T) {
	s := setupTestStore(t)
	a := mustNode(t, s, "entity", "A", 1)
	path, err := s.FindShortestPath(PathQuery{StartNodeID: a.ID, EndNodeID: a.ID, MaxHops: 1})
	if err != nil {
		t.Fatal(err)
	}
	if path == nil || len(path.Nodes) != 1 || len(path.Edges) != 0 {
		t.Errorf("start == end should yield a single-node path, got %+v", path)
	}
}

func TestGetNeighbors_IncomingFanIn(t *testing.T) {
	s := setupTestStore(t)
	target := mustNode(t, s, "entity", "Hub", 1)
	sources := make(map[string]bool)
	for i := 0; i < 10; i++ {
		n := mustNode(t, s, "entity", fmt.Sprintf("S%d", i), 1)
		mustEdge(t, s, n.ID, target.ID, "feeds")
		sources[n.ID] = true
	}

	neighbors, err := s.GetNeighbors(target.ID, DirectionIncoming)
	if err != nil {
		t.Fatal(err)
	}
	if len(neighbors) != 10 {
		t.Fatalf("expected 10 incoming neighbors, got %d", len(neighbors))
	}
	for _, n := range neighbors {
		if !sources[n.ID] {
			t.Errorf("unexpected neighbor %s", n.ID)
		}
	}

	out, err := s.GetNeighbors(target.ID, DirectionOutgoing)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("expected no outgoing neighbors, got %d", len(out))
	}
}

func TestGetNeighbors_Distinct(t *testing.T) {
	s := setupTestStore(t)
	a := mustNode(t, s, "entity", "A", 1)
	b := mustNode(t, s, "entity", "B", 1)
	mustEdge(t, s, a.ID, b.ID, "knows")
	mustEdge(t, s, a.ID, b.ID, "likes") // parallel relation, same pair

	neighbors, err := s.GetNeighbors(a.ID, DirectionOutgoing)
	if err != nil {
		t.Fatal(err)
	}
	if len(neighbors) != 1 {
		t.Errorf("parallel edges must yield one distinct neighbor, got %d", len(neighbors))
	}
}

func TestGetNeighbors_BidirectionalBothWays(t *testing.T) {
	s := setupTestStore(t)
	a := mustNode(t, s, "entity", "A", 1)
	b := mustNode(t, s, "entity", "B", 1)
	if _, err := s.CreateEdge(EdgeSpec{SourceID: a.ID, TargetID: b.ID, Relation: "linked", Bidirectional: true, Confidence: 1}); err != nil {
		t.Fatal(err)
	}

	for _, dir := range []Direction{DirectionOutgoing, DirectionIncoming, DirectionBoth} {
		neighbors, err := s.GetNeighbors(b.ID, dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(neighbors) != 1 || neighbors[0].ID != a.ID {
			t.Errorf("direction %s: expected [A], got %+v", dir, neighbors)
		}
	}
}

func TestNodeDegree_Hub(t *testing.T) {
	s := setupTestStore(t)
	hub := mustNode(t, s, "entity", "Hub", 1)
	for i := 0; i < 7; i++ {
		n := mustNode(t, s, "entity", fmt.Sprintf("N%d", i), 1)
		mustEdge(t, s, hub.ID, n.ID, "spoke")
	}

	deg, err := s.NodeDegree(hub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if deg.OutDegree != 7 || deg.InDegree != 0 || deg.TotalDegree != 7 {
		t.Errorf("expected {7 0 7}, got %+v", deg)
	}
}

func TestGraphStats(t *testing.T) {
	s := setupTestStore(t)
	a := mustNode(t, s, "entity", "A", 1)
	b := mustNode(t, s, "entity", "B", 1)
	c := mustNode(t, s, "concept", "C", 1)
	mustEdge(t, s, a.ID, b.ID, "x")
	mustEdge(t, s, b.ID, c.ID, "y")

	stats, err := s.GraphStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.NodeCount != 3 || stats.EdgeCount != 2 {
		t.Errorf("expected 3 nodes / 2 edges, got %+v", stats)
	}
	if stats.NodesByType["entity"] != 2 || stats.NodesByType["concept"] != 1 {
		t.Errorf("unexpected type breakdown: %v", stats.NodesByType)
	}

	sum := 0
	for _, count := range stats.NodesByType {
		sum += count
	}
	if sum != stats.NodeCount {
		t.Errorf("type counts (%d) must sum to node count (%d)", sum, stats.NodeCount)
	}

	// Tombstones drop out of every stat.
	if err := s.DeleteNode(c.ID); err != nil {
		t.Fatal(err)
	}
	stats, err = s.GraphStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.NodeCount != 2 || stats.EdgeCount != 1 {
		t.Errorf("after delete expected 2 nodes / 1 edge, got %+v", stats)
	}
}

func TestGraphStats_Scale(t *testing.T) {
	if testing.Short() {
		t.Skip("scale test")
	}
	s := setupTestStore(t)
	rng := rand.New(rand.NewSource(42))

	ids := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		n := mustNode(t, s, "entity", fmt.Sprintf("Node %d", i), 0.5)
		ids = append(ids, n.ID)
	}
	for i := 0; i < 500; i++ {
		src := ids[rng.Intn(len(ids))]
		dst := ids[rng.Intn(len(ids))]
		mustEdge(t, s, src, dst, fmt.Sprintf("rel-%d", i))
	}

	stats, err := s.GraphStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.NodeCount != 1000 || stats.EdgeCount != 500 {
		t.Errorf("expected exactly {1000 500}, got %+v", stats)
	}
}
