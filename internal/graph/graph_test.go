package graph

import (
	"fmt"
	"testing"
	"time"
)

func nowMs() int64          { return time.Now().UnixMilli() }
func daysAgo(d int64) int64 { return nowMs() - d*86_400_000 }

type testNode struct {
	id         string
	typ        string
	observedAt int64
	confidence float64
}

type testEdge struct {
	source, target, relation string
	observedAt               int64
	confidence               float64
}

func makeTestSnapshot(nodes []testNode, edges []testEdge) *GraphSnapshot {
	var nodeInfos []*NodeInfo
	for _, n := range nodes {
		conf := n.confidence
		if conf == 0 {
			conf = 0.8
		}
		nodeInfos = append(nodeInfos, &NodeInfo{
			ID:         n.id,
			Label:      "Node " + n.id,
			Type:       n.typ,
			ObservedAt: n.observedAt,
			Confidence: conf,
		})
	}
	var edgeInfos []EdgeInfo
	for i, e := range edges {
		conf := e.confidence
		if conf == 0 {
			conf = 0.8
		}
		edgeInfos = append(edgeInfos, EdgeInfo{
			ID:         fmt.Sprintf("e%d", i),
			Source:     e.source,
			Target:     e.target,
			Relation:   e.relation,
			ObservedAt: e.observedAt,
			Confidence: conf,
		})
	}
	return NewSnapshot(nodeInfos, edgeInfos)
}

// Use a simpler helper for most tests
func quickSnapshot(nodeIDs []string, edges [][2]string) *GraphSnapshot {
	now := nowMs()
	var nodes []testNode
	for _, id := range nodeIDs {
		nodes = append(nodes, testNode{id: id, typ: "concept", observedAt: now})
	}
	var edgeInfos []testEdge
	for _, e := range edges {
		edgeInfos = append(edgeInfos, testEdge{source: e[0], target: e[1], relation: "related", observedAt: now})
	}
	return makeTestSnapshot(nodes, edgeInfos)
}

// --- Topology Tests ---

func TestTopology_EmptyGraph(t *testing.T) {
	snap := NewSnapshot(nil, nil)
	r := ComputeTopology(snap, 4, 10)
	if r.TotalNodes != 0 || r.TotalEdges != 0 || r.NumComponents != 0 {
		t.Errorf("empty graph should have all zeros, got nodes=%d edges=%d components=%d",
			r.TotalNodes, r.TotalEdges, r.NumComponents)
	}
}

func TestTopology_SingleComponent(t *testing.T) {
	snap := quickSnapshot(
		[]string{"A", "B", "C", "D", "E"},
		[][2]string{{"A", "B"}, {"B", "C"}, {"C", "D"}, {"D", "E"}},
	)
	r := ComputeTopology(snap, 4, 10)
	if r.NumComponents != 1 {
		t.Errorf("expected 1 component, got %d", r.NumComponents)
	}
	if r.LargestComponent != 5 {
		t.Errorf("expected largest=5, got %d", r.LargestComponent)
	}
	if r.OrphanCount != 0 {
		t.Errorf("expected 0 orphans, got %d", r.OrphanCount)
	}
}

func TestTopology_TwoComponents(t *testing.T) {
	snap := quickSnapshot(
		[]string{"A", "B", "C", "D", "E"},
		[][2]string{{"A", "B"}, {"B", "C"}, {"D", "E"}},
	)
	r := ComputeTopology(snap, 4, 10)
	if r.NumComponents != 2 {
		t.Errorf("expected 2 components, got %d", r.NumComponents)
	}
	if r.LargestComponent != 3 {
		t.Errorf("expected largest=3, got %d", r.LargestComponent)
	}
	if r.SmallestComponent != 2 {
		t.Errorf("expected smallest=2, got %d", r.SmallestComponent)
	}
}

func TestOrphan_Detection(t *testing.T) {
	snap := quickSnapshot(
		[]string{"A", "B", "C"},
		[][2]string{{"A", "B"}},
	)
	r := ComputeTopology(snap, 4, 10)
	if r.OrphanCount != 1 {
		t.Errorf("expected 1 orphan, got %d", r.OrphanCount)
	}
	found := false
	for _, id := range r.OrphanIDs {
		if id == "C" {
			found = true
		}
	}
	if !found {
		t.Errorf("C should be an orphan, got %v", r.OrphanIDs)
	}
}

func TestHub_Detection(t *testing.T) {
	snap := quickSnapshot(
		[]string{"center", "s1", "s2", "s3", "s4", "s5"},
		[][2]string{{"center", "s1"}, {"center", "s2"}, {"center", "s3"}, {"center", "s4"}, {"center", "s5"}},
	)
	r := ComputeTopology(snap, 4, 10)
	if len(r.Hubs) != 1 {
		t.Fatalf("expected 1 hub, got %d", len(r.Hubs))
	}
	if r.Hubs[0].ID != "center" {
		t.Errorf("expected center as hub, got %s", r.Hubs[0].ID)
	}
	if r.Hubs[0].Degree <= 4 {
		t.Errorf("center degree should be > 4, got %d", r.Hubs[0].Degree)
	}
}

func TestHub_RankedByWeightedScore(t *testing.T) {
	now := nowMs()
	var nodes []testNode
	var edges []testEdge
	// Two hubs of equal degree; "doubtful" is held together by weak edges.
	for _, hub := range []string{"trusted", "doubtful"} {
		conf := 0.9
		if hub == "doubtful" {
			conf = 0.1
		}
		nodes = append(nodes, testNode{id: hub, typ: "concept", observedAt: now})
		for i := 0; i < 3; i++ {
			spoke := fmt.Sprintf("%s-s%d", hub, i)
			nodes = append(nodes, testNode{id: spoke, typ: "concept", observedAt: now})
			edges = append(edges, testEdge{source: hub, target: spoke, relation: "related", observedAt: now, confidence: conf})
		}
	}
	snap := makeTestSnapshot(nodes, edges)
	r := ComputeTopology(snap, 2, 10)
	if len(r.Hubs) != 2 {
		t.Fatalf("expected 2 hubs, got %d", len(r.Hubs))
	}
	if r.Hubs[0].ID != "trusted" {
		t.Errorf("well-attested hub should rank first, got %s", r.Hubs[0].ID)
	}
	if r.Hubs[0].Score <= r.Hubs[1].Score {
		t.Errorf("expected score order %f > %f", r.Hubs[0].Score, r.Hubs[1].Score)
	}
}

func TestComponents_TypeMix(t *testing.T) {
	now := nowMs()
	snap := makeTestSnapshot(
		[]testNode{
			{"p1", "person", now, 0.9},
			{"p2", "person", now, 0.7},
			{"c1", "concept", now, 0.8},
			{"lone", "concept", now, 0.5},
		},
		[]testEdge{
			{source: "p1", target: "p2", relation: "knows", observedAt: now},
			{source: "p1", target: "c1", relation: "studies", observedAt: now},
		},
	)
	r := ComputeTopology(snap, 10, 10)
	if len(r.Components) != 2 {
		t.Fatalf("expected 2 component summaries, got %d", len(r.Components))
	}
	main := r.Components[0]
	if main.Size != 3 {
		t.Errorf("largest first: expected size 3, got %d", main.Size)
	}
	if main.DominantType != "person" {
		t.Errorf("expected dominant type person, got %s", main.DominantType)
	}
	if main.TypeCounts["person"] != 2 || main.TypeCounts["concept"] != 1 {
		t.Errorf("unexpected type counts: %v", main.TypeCounts)
	}
	if main.MeanConfidence < 0.79 || main.MeanConfidence > 0.81 {
		t.Errorf("expected mean confidence 0.8, got %f", main.MeanConfidence)
	}
	if r.Components[1].Size != 1 || r.Components[1].DominantType != "concept" {
		t.Errorf("unexpected second component: %+v", r.Components[1])
	}
}

// --- Tarjan Tests ---

func TestTarjan_Bridge(t *testing.T) {
	snap := quickSnapshot(
		[]string{"A", "B", "C"},
		[][2]string{{"A", "B"}, {"B", "C"}},
	)
	r := ComputeBridges(snap)
	if r.BridgeCount != 2 {
		t.Errorf("expected 2 bridges, got %d", r.BridgeCount)
	}
	if r.APCount < 1 {
		t.Errorf("expected at least 1 AP, got %d", r.APCount)
	}
	foundB := false
	for _, ap := range r.ArticulationPoints {
		if ap.ID == "B" {
			foundB = true
		}
	}
	if !foundB {
		t.Errorf("B should be AP")
	}
}

func TestTarjan_CycleNoBridges(t *testing.T) {
	snap := quickSnapshot(
		[]string{"A", "B", "C"},
		[][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}},
	)
	r := ComputeBridges(snap)
	if r.BridgeCount != 0 {
		t.Errorf("triangle should have 0 bridges, got %d", r.BridgeCount)
	}
	if r.APCount != 0 {
		t.Errorf("triangle should have 0 APs, got %d", r.APCount)
	}
}

func TestTarjan_TwoCyclesJoined(t *testing.T) {
	snap := quickSnapshot(
		[]string{"A", "B", "C", "D", "E", "F"},
		[][2]string{
			{"A", "B"}, {"B", "C"}, {"C", "A"}, // triangle 1
			{"D", "E"}, {"E", "F"}, {"F", "D"}, // triangle 2
			{"C", "D"}, // bridge
		},
	)
	r := ComputeBridges(snap)
	if r.BridgeCount != 1 {
		t.Errorf("expected 1 bridge (C-D), got %d", r.BridgeCount)
	}
	if r.APCount < 2 {
		t.Errorf("expected at least 2 APs (C and D), got %d", r.APCount)
	}
	apIDs := make(map[string]bool)
	for _, ap := range r.ArticulationPoints {
		apIDs[ap.ID] = true
	}
	if !apIDs["C"] || !apIDs["D"] {
		t.Errorf("C and D should be APs, got %v", apIDs)
	}
}

func TestTarjan_WeakestArticulationPointFirst(t *testing.T) {
	now := nowMs()
	// Chain A - B - C - D - E: B, C, D are all articulation points.
	snap := makeTestSnapshot(
		[]testNode{
			{"A", "concept", now, 0.8},
			{"B", "concept", now, 0.9},
			{"C", "concept", now, 0.2},
			{"D", "concept", now, 0.6},
			{"E", "concept", now, 0.8},
		},
		[]testEdge{
			{source: "A", target: "B", relation: "related", observedAt: now},
			{source: "B", target: "C", relation: "related", observedAt: now},
			{source: "C", target: "D", relation: "cites", observedAt: now},
			{source: "D", target: "E", relation: "related", observedAt: now},
		},
	)
	r := ComputeBridges(snap)
	if r.APCount != 3 {
		t.Fatalf("expected 3 APs, got %d", r.APCount)
	}
	if r.ArticulationPoints[0].ID != "C" {
		t.Errorf("lowest-confidence AP should come first, got %s", r.ArticulationPoints[0].ID)
	}
	if r.ArticulationPoints[0].Confidence != 0.2 {
		t.Errorf("expected confidence 0.2, got %f", r.ArticulationPoints[0].Confidence)
	}

	// Every chain edge is a bridge and reports its relation.
	if r.BridgeCount != 4 {
		t.Fatalf("expected 4 bridges, got %d", r.BridgeCount)
	}
	relations := make(map[string]bool)
	for _, be := range r.BridgeEdges {
		relations[be.Relation] = true
	}
	if !relations["cites"] || !relations["related"] {
		t.Errorf("bridge relations missing: %v", relations)
	}
}

// --- Staleness Tests ---

func TestStaleness_Detected(t *testing.T) {
	now := nowMs()
	snap := makeTestSnapshot(
		[]testNode{
			{"A", "concept", daysAgo(90), 0.8},
			{"B", "concept", now, 0.8},
		},
		[]testEdge{
			{source: "B", target: "A", relation: "references", observedAt: daysAgo(1)},
		},
	)
	r := ComputeStaleness(snap, 30)
	if r.StaleNodeCount != 1 {
		t.Fatalf("expected 1 stale node, got %d", r.StaleNodeCount)
	}
	if r.StaleNodes[0].ID != "A" {
		t.Errorf("expected A to be stale, got %s", r.StaleNodes[0].ID)
	}
	if r.StaleNodes[0].DaysSinceUpdate < 89 {
		t.Errorf("expected ~90 days, got %d", r.StaleNodes[0].DaysSinceUpdate)
	}
}

func TestStaleness_NoFalsePositive(t *testing.T) {
	snap := makeTestSnapshot(
		[]testNode{
			{"A", "concept", daysAgo(90), 0.8},
			{"B", "concept", daysAgo(60), 0.8},
		},
		[]testEdge{
			{source: "B", target: "A", relation: "references", observedAt: daysAgo(60)},
		},
	)
	r := ComputeStaleness(snap, 30)
	if r.StaleNodeCount != 0 {
		t.Errorf("old node with only old edges should not be stale, got %d", r.StaleNodeCount)
	}
}

func TestStaleness_DecayedNodes(t *testing.T) {
	now := nowMs()
	snap := makeTestSnapshot(
		[]testNode{
			{"old-weak", "concept", daysAgo(90), 0.2},
			{"old-strong", "concept", daysAgo(90), 0.9},
			{"fresh-weak", "concept", now, 0.2},
		},
		nil,
	)
	r := ComputeStaleness(snap, 30)
	if r.DecayedCount != 1 {
		t.Fatalf("expected 1 decayed node, got %d", r.DecayedCount)
	}
	if r.DecayedNodes[0].ID != "old-weak" {
		t.Errorf("expected old-weak to decay, got %s", r.DecayedNodes[0].ID)
	}
	if r.DecayedNodes[0].AgeDays < 89 {
		t.Errorf("expected ~90 days, got %d", r.DecayedNodes[0].AgeDays)
	}
}

// --- Type filter and fragile connection tests ---

func TestFilterToTypes(t *testing.T) {
	now := nowMs()
	snap := makeTestSnapshot(
		[]testNode{
			{"p1", "person", now, 0.8},
			{"p2", "person", now, 0.8},
			{"c1", "concept", now, 0.8},
		},
		[]testEdge{
			{source: "p1", target: "p2", relation: "knows", observedAt: now},
			{source: "p1", target: "c1", relation: "studies", observedAt: now},
		},
	)
	filtered := snap.FilterToTypes("person")
	if len(filtered.Nodes) != 2 {
		t.Fatalf("expected 2 person nodes, got %d", len(filtered.Nodes))
	}
	if len(filtered.Edges) != 1 {
		t.Errorf("expected 1 person-person edge, got %d", len(filtered.Edges))
	}
	if _, ok := filtered.Nodes["c1"]; ok {
		t.Error("concept node should be filtered out")
	}
}

func TestFragile_Connections(t *testing.T) {
	now := nowMs()
	snap := makeTestSnapshot(
		[]testNode{
			{"p1", "person", now, 0.8},
			{"p2", "person", now, 0.8},
			{"c1", "concept", now, 0.8},
			{"c2", "concept", now, 0.8},
		},
		[]testEdge{
			{source: "p1", target: "p2", relation: "knows", observedAt: now},
			{source: "c1", target: "c2", relation: "related", observedAt: now},
			{source: "p1", target: "c1", relation: "studies", observedAt: now},
		},
	)
	r := ComputeBridges(snap)
	if len(r.FragileConnections) == 0 {
		t.Fatal("should detect fragile connection")
	}
	if r.FragileConnections[0].CrossEdges != 1 {
		t.Errorf("expected 1 cross-edge, got %d", r.FragileConnections[0].CrossEdges)
	}
	if r.FragileConnections[0].TypeA != "concept" || r.FragileConnections[0].TypeB != "person" {
		t.Errorf("unexpected type pair: %s / %s", r.FragileConnections[0].TypeA, r.FragileConnections[0].TypeB)
	}
}

// --- Health Tests ---

func TestHealthScore_Range(t *testing.T) {
	// All orphans
	snap := quickSnapshot([]string{"A", "B", "C"}, nil)
	r := Analyze(snap, DefaultConfig())
	if r.HealthScore < 0 || r.HealthScore > 1 {
		t.Errorf("health out of range: %f", r.HealthScore)
	}

	// Connected
	snap2 := quickSnapshot([]string{"A", "B"}, [][2]string{{"A", "B"}})
	r2 := Analyze(snap2, DefaultConfig())
	if r2.HealthScore < 0 || r2.HealthScore > 1 {
		t.Errorf("health out of range: %f", r2.HealthScore)
	}
}

func TestHealthScore_Perfect(t *testing.T) {
	snap := quickSnapshot(
		[]string{"A", "B", "C"},
		[][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}},
	)
	r := Analyze(snap, &AnalyzerConfig{HubThreshold: 10, TopN: 50, StaleDays: 30})
	if r.HealthScore < 0.95 {
		t.Errorf("perfect graph should have health ~1.0, got %f", r.HealthScore)
	}
}

func TestHealthScore_CoverageAndConfidence(t *testing.T) {
	now := nowMs()
	// Two equal components: the largest covers half the graph.
	snap := makeTestSnapshot(
		[]testNode{
			{"A", "concept", now, 0.9},
			{"B", "concept", now, 0.9},
			{"C", "concept", now, 0.3},
			{"D", "concept", now, 0.3},
		},
		[]testEdge{
			{source: "A", target: "B", relation: "related", observedAt: now},
			{source: "C", target: "D", relation: "related", observedAt: now},
		},
	)
	r := Analyze(snap, DefaultConfig())
	if r.HealthBreakdown.Coverage != 0.5 {
		t.Errorf("expected coverage 0.5, got %f", r.HealthBreakdown.Coverage)
	}
	if r.HealthBreakdown.Confidence < 0.59 || r.HealthBreakdown.Confidence > 0.61 {
		t.Errorf("expected mean confidence 0.6, got %f", r.HealthBreakdown.Confidence)
	}

	// Dropping every node's confidence lowers the composite score.
	low := makeTestSnapshot(
		[]testNode{
			{"A", "concept", now, 0.1},
			{"B", "concept", now, 0.1},
			{"C", "concept", now, 0.1},
			{"D", "concept", now, 0.1},
		},
		[]testEdge{
			{source: "A", target: "B", relation: "related", observedAt: now},
			{source: "C", target: "D", relation: "related", observedAt: now},
		},
	)
	r2 := Analyze(low, DefaultConfig())
	if r2.HealthScore >= r.HealthScore {
		t.Errorf("low-confidence graph should score lower: %f >= %f", r2.HealthScore, r.HealthScore)
	}
}
