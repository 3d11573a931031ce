package store

import "fmt"

// move is one usable traversal step: a bidirectional edge yields a move in
// each direction, a plain edge only source -> target.
type move struct {
	edge Edge
	to   string
}

// adjacency builds the usable-move map over all live edges, preserving
// edge creation order so BFS discovery order is deterministic.
func (s *Store) adjacency() (map[string][]move, error) {
	edges, err := s.AllEdges()
	if err != nil {
		return nil, err
	}
	adj := make(map[string][]move)
	for _, e := range edges {
		adj[e.SourceID] = append(adj[e.SourceID], move{edge: e, to: e.TargetID})
		if e.Bidirectional {
			adj[e.TargetID] = append(adj[e.TargetID], move{edge: e, to: e.SourceID})
		}
	}
	return adj, nil
}

// GetNeighbors returns the distinct live nodes one hop away in the
// requested direction(s). A bidirectional edge contributes to both
// directions regardless of its stored orientation.
func (s *Store) GetNeighbors(nodeID string, direction Direction) ([]Node, error) {
	out, err := s.GetOutgoingEdges(nodeID)
	if err != nil {
		return nil, err
	}
	in, err := s.GetIncomingEdges(nodeID)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != nodeID && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	wantOut := direction == DirectionOutgoing || direction == DirectionBoth
	wantIn := direction == DirectionIncoming || direction == DirectionBoth

	if wantOut {
		for _, e := range out {
			add(e.TargetID)
		}
		for _, e := range in {
			if e.Bidirectional {
				add(e.SourceID)
			}
		}
	}
	if wantIn {
		for _, e := range in {
			add(e.SourceID)
		}
		for _, e := range out {
			if e.Bidirectional {
				add(e.TargetID)
			}
		}
	}

	neighbors := make([]Node, 0, len(ids))
	for _, id := range ids {
		n, err := s.GetNode(id)
		if err != nil {
			return nil, err
		}
		if n != nil {
			neighbors = append(neighbors, *n)
		}
	}
	return neighbors, nil
}

// FindShortestPath runs breadth-first search from start to end over the
// live edge set, bidirectional edges traversable either way. Returns the
// first-discovered shortest path, or nil if none exists within MaxHops.
// Ties among equal-length paths follow BFS discovery order, which is
// deterministic given a fixed edge creation order.
func (s *Store) FindShortestPath(q PathQuery) (*Path, error) {
	start, err := s.GetNode(q.StartNodeID)
	if err != nil {
		return nil, err
	}
	end, err := s.GetNode(q.EndNodeID)
	if err != nil {
		return nil, err
	}
	if start == nil || end == nil {
		return nil, nil
	}
	if q.StartNodeID == q.EndNodeID {
		return &Path{Nodes: []Node{*start}, Edges: []Edge{}}, nil
	}
	if q.MaxHops <= 0 {
		return nil, nil
	}

	adj, err := s.adjacency()
	if err != nil {
		return nil, err
	}

	type prevEntry struct {
		prevID string
		edge   Edge
	}
	prev := make(map[string]prevEntry)
	visited := map[string]bool{q.StartNodeID: true}
	frontier := []string{q.StartNodeID}

	found := false
	for hops := 1; hops <= q.MaxHops && len(frontier) > 0 && !found; hops++ {
		var next []string
		for _, current := range frontier {
			for _, m := range adj[current] {
				if visited[m.to] {
					continue
				}
				visited[m.to] = true
				prev[m.to] = prevEntry{prevID: current, edge: m.edge}
				if m.to == q.EndNodeID {
					found = true
					break
				}
				next = append(next, m.to)
			}
			if found {
				break
			}
		}
		frontier = next
	}
	if !found {
		return nil, nil
	}

	// Walk the prev chain backwards, then reverse.
	var pathEdges []Edge
	var pathIDs []string
	current := q.EndNodeID
	for current != q.StartNodeID {
		entry := prev[current]
		pathEdges = append(pathEdges, entry.edge)
		pathIDs = append(pathIDs, current)
		current = entry.prevID
	}
	pathIDs = append(pathIDs, q.StartNodeID)
	for i, j := 0, len(pathEdges)-1; i < j; i, j = i+1, j-1 {
		pathEdges[i], pathEdges[j] = pathEdges[j], pathEdges[i]
	}
	for i, j := 0, len(pathIDs)-1; i < j; i, j = i+1, j-1 {
		pathIDs[i], pathIDs[j] = pathIDs[j], pathIDs[i]
	}

	path := &Path{Edges: pathEdges}
	for _, id := range pathIDs {
		n, err := s.GetNode(id)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, fmt.Errorf("path node %s vanished mid-search", id)
		}
		path.Nodes = append(path.Nodes, *n)
	}
	return path, nil
}

// NodeDegree counts live edges by stored orientation. TotalDegree is an
// edge count, not a distinct-neighbor count.
func (s *Store) NodeDegree(nodeID string) (Degree, error) {
	n, err := s.GetNode(nodeID)
	if err != nil {
		return Degree{}, err
	}
	if n == nil {
		return Degree{}, fmt.Errorf("degree of node %s: %w", nodeID, ErrNotFound)
	}

	out, err := s.GetOutgoingEdges(nodeID)
	if err != nil {
		return Degree{}, err
	}
	in, err := s.GetIncomingEdges(nodeID)
	if err != nil {
		return Degree{}, err
	}
	return Degree{
		OutDegree:   len(out),
		InDegree:    len(in),
		TotalDegree: len(out) + len(in),
	}, nil
}

// GraphStats summarizes the live graph: tombstoned nodes and edges touching
// them are excluded.
func (s *Store) GraphStats() (Stats, error) {
	stats := Stats{NodesByType: make(map[string]int)}

	rows, err := s.conn.Query(`
		SELECT type, COUNT(*) FROM nodes
		WHERE namespace = ? AND deleted_at IS NULL
		GROUP BY type
	`, s.Namespace)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var count int
		if err := rows.Scan(&t, &count); err != nil {
			return stats, err
		}
		stats.NodesByType[t] = count
		stats.NodeCount += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	err = s.conn.QueryRow(`
		SELECT COUNT(*)
		FROM edges e
		JOIN nodes src ON src.id = e.source_id AND src.namespace = e.namespace
		JOIN nodes dst ON dst.id = e.target_id AND dst.namespace = e.namespace
		WHERE e.namespace = ? AND e.deleted_at IS NULL
		  AND src.deleted_at IS NULL AND dst.deleted_at IS NULL
	`, s.Namespace).Scan(&stats.EdgeCount)
	return stats, err
}
