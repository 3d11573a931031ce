// Package graph runs offline structural analysis over an immutable
// snapshot of the live graph: connected components, hubs, articulation
// points, staleness, and a composite health score. It never touches
// storage after the snapshot is taken.
package graph

import "sort"

// NodeInfo is a lightweight node representation decoupled from storage types.
type NodeInfo struct {
	ID         string
	Label      string
	Type       string
	ObservedAt int64 // Unix millis
	Confidence float64
}

// EdgeInfo is a lightweight edge representation.
type EdgeInfo struct {
	ID         string
	Source     string
	Target     string
	Relation   string
	ObservedAt int64
	Confidence float64
}

// GraphSnapshot holds a graph with precomputed adjacency lists.
type GraphSnapshot struct {
	Nodes  map[string]*NodeInfo
	Edges  []EdgeInfo
	Adj    map[string][]string // undirected
	OutAdj map[string][]string // directed: source -> targets
	InAdj  map[string][]string // directed: target -> sources
}

// NewSnapshot builds a GraphSnapshot from raw nodes and edges. Edges whose
// endpoints are not in the node set are dropped.
func NewSnapshot(nodes []*NodeInfo, edges []EdgeInfo) *GraphSnapshot {
	nodeMap := make(map[string]*NodeInfo, len(nodes))
	adj := make(map[string][]string)
	outAdj := make(map[string][]string)
	inAdj := make(map[string][]string)

	for _, n := range nodes {
		nodeMap[n.ID] = n
		adj[n.ID] = nil // ensure entry exists
		outAdj[n.ID] = nil
		inAdj[n.ID] = nil
	}

	var kept []EdgeInfo
	for _, e := range edges {
		if _, ok := nodeMap[e.Source]; !ok {
			continue
		}
		if _, ok := nodeMap[e.Target]; !ok {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
		outAdj[e.Source] = append(outAdj[e.Source], e.Target)
		inAdj[e.Target] = append(inAdj[e.Target], e.Source)
		kept = append(kept, e)
	}

	return &GraphSnapshot{
		Nodes:  nodeMap,
		Edges:  kept,
		Adj:    adj,
		OutAdj: outAdj,
		InAdj:  inAdj,
	}
}

// FilterToTypes returns a new snapshot containing only nodes of the given
// types and the edges between them. No types means no filtering.
func (s *GraphSnapshot) FilterToTypes(types ...string) *GraphSnapshot {
	if len(types) == 0 {
		return s
	}
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}

	var filteredNodes []*NodeInfo
	filteredSet := make(map[string]bool)
	for id, n := range s.Nodes {
		if want[n.Type] {
			filteredNodes = append(filteredNodes, n)
			filteredSet[id] = true
		}
	}

	var filteredEdges []EdgeInfo
	for _, e := range s.Edges {
		if filteredSet[e.Source] && filteredSet[e.Target] {
			filteredEdges = append(filteredEdges, e)
		}
	}

	return NewSnapshot(filteredNodes, filteredEdges)
}

// NodeIDs returns a sorted list of all node IDs (for deterministic output).
func (s *GraphSnapshot) NodeIDs() []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
