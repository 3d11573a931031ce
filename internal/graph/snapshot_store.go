package graph

import "knowfed/kfn/internal/store"

// SnapshotFromStore loads the live (non-tombstoned) graph into a snapshot.
func SnapshotFromStore(s *store.Store) (*GraphSnapshot, error) {
	liveNodes, err := s.ListNodes(store.NodeFilter{})
	if err != nil {
		return nil, err
	}
	liveEdges, err := s.AllEdges()
	if err != nil {
		return nil, err
	}

	nodes := make([]*NodeInfo, 0, len(liveNodes))
	for _, n := range liveNodes {
		nodes = append(nodes, &NodeInfo{
			ID:         n.ID,
			Label:      n.Label,
			Type:       n.Type,
			ObservedAt: n.Source.Timestamp,
			Confidence: n.Confidence,
		})
	}

	edges := make([]EdgeInfo, 0, len(liveEdges))
	for _, e := range liveEdges {
		edges = append(edges, EdgeInfo{
			ID:         e.ID,
			Source:     e.SourceID,
			Target:     e.TargetID,
			Relation:   e.Relation,
			ObservedAt: e.Source.Timestamp,
			Confidence: e.Confidence,
		})
	}

	return NewSnapshot(nodes, edges), nil
}
