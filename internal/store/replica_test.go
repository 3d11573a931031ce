package store

import "testing"

func TestChangedNodesSince(t *testing.T) {
	s := setupTestStore(t)
	a := mustNode(t, s, "entity", "A", 1)
	wm, err := s.CurrentSeq()
	if err != nil {
		t.Fatal(err)
	}
	b := mustNode(t, s, "entity", "B", 1)
	if err := s.DeleteNode(a.ID); err != nil {
		t.Fatal(err)
	}

	changed, err := s.ChangedNodesSince(wm)
	if err != nil {
		t.Fatal(err)
	}
	// B's create plus A's tombstone, in sequence order.
	if len(changed) != 2 {
		t.Fatalf("expected 2 changed rows, got %d", len(changed))
	}
	if changed[0].ID != b.ID {
		t.Errorf("first change should be B, got %s", changed[0].ID)
	}
	if changed[1].ID != a.ID || !changed[1].Deleted() {
		t.Errorf("second change should be A's tombstone, got %+v", changed[1])
	}
}

func TestPutNodeRecord_PreservesVersionAndTombstone(t *testing.T) {
	s := setupTestStore(t)
	deleted := int64(1234)
	rec := Node{
		ID: "remote-1", Type: "entity", Label: "Remote",
		Source:     Provenance{AgentID: "peer-a", Timestamp: 100},
		Confidence: 0.7, Version: 5, DeletedAt: &deleted,
	}
	if err := s.PutNodeRecord(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetNodeRecord("remote-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 5 {
		t.Errorf("replica write must preserve version, got %d", got.Version)
	}
	if !got.Deleted() {
		t.Error("replica write must preserve the tombstone")
	}
	if got.Seq == 0 {
		t.Error("replica write must take a fresh local seq")
	}

	// The tombstone stays hidden from the ordinary read path.
	visible, err := s.GetNode("remote-1")
	if err != nil {
		t.Fatal(err)
	}
	if visible != nil {
		t.Error("replicated tombstone must read as nil")
	}
}

func TestPutEdgeRecord_EndpointsMayArriveLater(t *testing.T) {
	s := setupTestStore(t)
	rec := Edge{
		ID: "remote-e1", SourceID: "remote-n1", TargetID: "remote-n2",
		Relation: "knows", Weight: 1, Confidence: 0.5, Version: 2,
		Source: Provenance{AgentID: "peer-a", Timestamp: 100},
	}
	if err := s.PutEdgeRecord(rec); err != nil {
		t.Fatal(err)
	}

	// Hidden until both endpoints exist.
	edges, err := s.AllEdges()
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 0 {
		t.Errorf("edge with missing endpoints must be hidden, got %d", len(edges))
	}

	for _, id := range []string{"remote-n1", "remote-n2"} {
		if err := s.PutNodeRecord(Node{ID: id, Type: "entity", Label: id, Confidence: 1, Version: 1}); err != nil {
			t.Fatal(err)
		}
	}
	edges, err = s.AllEdges()
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 || edges[0].Version != 2 {
		t.Errorf("expected the replicated edge at version 2, got %+v", edges)
	}
}

func TestWatermark_MonotonicAdvance(t *testing.T) {
	s := setupTestStore(t)
	wm, err := s.Watermark("peer-b")
	if err != nil {
		t.Fatal(err)
	}
	if wm != 0 {
		t.Errorf("unsynced peer should start at 0, got %d", wm)
	}

	if err := s.SetWatermark("peer-b", 10); err != nil {
		t.Fatal(err)
	}
	if err := s.SetWatermark("peer-b", 7); err != nil {
		t.Fatal(err)
	}
	wm, err = s.Watermark("peer-b")
	if err != nil {
		t.Fatal(err)
	}
	if wm != 10 {
		t.Errorf("watermark must never move backwards, got %d", wm)
	}
}

func TestRounds_Lifecycle(t *testing.T) {
	s := setupTestStore(t)
	if err := s.BeginRound("r1", "peer-b"); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishRound("r1", RoundCompleted, 3, 2, 1, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginRound("r2", "peer-b"); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishRound("r2", RoundFailed, 0, 0, 0, "transport down"); err != nil {
		t.Fatal(err)
	}

	rounds, err := s.RecentRounds("peer-b", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}
	if rounds[0].Status != RoundFailed || rounds[0].Error != "transport down" {
		t.Errorf("newest round should be the failure, got %+v", rounds[0])
	}
	if rounds[1].Applied != 2 || rounds[1].Conflicts != 1 {
		t.Errorf("completed round counters wrong: %+v", rounds[1])
	}
}
