package query

import (
	"container/heap"
	"math"

	"knowfed/kfn/internal/store"
)

// RelatedOptions holds parameters for the weighted expansion. Budget caps
// the number of nodes returned; Relations is an allowlist (nil means every
// relation) and ExcludeRelations a blocklist.
type RelatedOptions struct {
	Budget           int
	MaxHops          int
	MaxCost          float64
	Relations        []string
	ExcludeRelations []string
}

// DefaultRelatedOptions returns sensible defaults.
func DefaultRelatedOptions() *RelatedOptions {
	return &RelatedOptions{
		Budget:  20,
		MaxHops: 6,
		MaxCost: 3.0,
	}
}

// Hop is one step in a path from the start node to a related node.
type Hop struct {
	EdgeID    string `json:"edgeId"`
	Relation  string `json:"relation"`
	NodeID    string `json:"nodeId"`
	NodeLabel string `json:"nodeLabel"`
}

// RelatedNode is a node reached by the expansion, with its path back to
// the start.
type RelatedNode struct {
	Rank      int        `json:"rank"`
	Node      store.Node `json:"node"`
	Distance  float64    `json:"distance"`
	Relevance float64    `json:"relevance"`
	Hops      int        `json:"hops"`
	Path      []Hop      `json:"path"`
}

// prevEntry tracks how a node was reached (for path reconstruction).
type prevEntry struct {
	prevNodeID string
	edgeID     string
	relation   string
}

// expandEntry is a min-heap entry.
type expandEntry struct {
	distance float64
	nodeID   string
	hops     int
}

// expandHeap implements container/heap.Interface as a min-heap.
// Ties broken by nodeID (lexicographic) for deterministic output.
type expandHeap []expandEntry

func (h expandHeap) Len() int { return len(h) }
func (h expandHeap) Less(i, j int) bool {
	if h[i].distance != h[j].distance {
		return h[i].distance < h[j].distance
	}
	return h[i].nodeID < h[j].nodeID
}
func (h expandHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expandHeap) Push(x interface{}) { *h = append(*h, x.(expandEntry)) }
func (h *expandHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// edgeCost converts an edge's confidence and weight into a traversal cost:
// confident, heavy edges are cheap, doubtful ones expensive. Floored so a
// perfect edge still accumulates distance.
func edgeCost(e store.Edge) float64 {
	priority := math.Min(math.Max(e.Weight, 0), 1)
	return math.Max((1.0-e.Confidence)*(1.0-0.5*priority), 0.001)
}

// Related performs weighted cost expansion from a start node, treating
// every edge as undirected association. Returns up to Budget nodes sorted
// by distance (ascending).
func (e *Engine) Related(startID string, opts *RelatedOptions) ([]RelatedNode, error) {
	if opts == nil {
		opts = DefaultRelatedOptions()
	}
	budget := opts.Budget
	if budget <= 0 {
		budget = 20
	}
	maxHops := opts.MaxHops
	if maxHops <= 0 {
		maxHops = 6
	}
	maxCost := opts.MaxCost
	if maxCost <= 0 {
		maxCost = 3.0
	}

	var allowSet map[string]bool
	if opts.Relations != nil {
		allowSet = make(map[string]bool, len(opts.Relations))
		for _, r := range opts.Relations {
			allowSet[r] = true
		}
	}
	var excludeSet map[string]bool
	if opts.ExcludeRelations != nil {
		excludeSet = make(map[string]bool, len(opts.ExcludeRelations))
		for _, r := range opts.ExcludeRelations {
			excludeSet[r] = true
		}
	}

	dist := map[string]float64{startID: 0.0}
	prev := map[string]prevEntry{}
	visited := map[string]bool{}

	h := &expandHeap{{distance: 0.0, nodeID: startID, hops: 0}}
	heap.Init(h)

	var results []RelatedNode

	for h.Len() > 0 {
		entry := heap.Pop(h).(expandEntry)
		current := entry.nodeID
		if visited[current] {
			continue
		}
		visited[current] = true

		if current != startID {
			node, err := e.store.GetNode(current)
			if err == nil && node != nil {
				path, _ := e.reconstructPath(prev, startID, current)
				results = append(results, RelatedNode{
					Node:      *node,
					Distance:  entry.distance,
					Relevance: 1.0 / (1.0 + entry.distance),
					Hops:      entry.hops,
					Path:      path,
				})
				if len(results) >= budget {
					break
				}
			}
		}

		if entry.hops >= maxHops {
			continue
		}

		edges, err := e.touchingEdges(current)
		if err != nil {
			continue
		}
		for _, edge := range edges {
			if allowSet != nil && !allowSet[edge.Relation] {
				continue
			}
			if excludeSet != nil && excludeSet[edge.Relation] {
				continue
			}

			neighbor := edge.TargetID
			if edge.SourceID != current {
				neighbor = edge.SourceID
			}
			if visited[neighbor] {
				continue
			}

			newDist := entry.distance + edgeCost(edge)
			if newDist > maxCost {
				continue
			}

			prevDist, exists := dist[neighbor]
			if !exists || newDist < prevDist {
				dist[neighbor] = newDist
				prev[neighbor] = prevEntry{
					prevNodeID: current,
					edgeID:     edge.ID,
					relation:   edge.Relation,
				}
				heap.Push(h, expandEntry{
					distance: newDist,
					nodeID:   neighbor,
					hops:     entry.hops + 1,
				})
			}
		}
	}

	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

func (e *Engine) touchingEdges(nodeID string) ([]store.Edge, error) {
	out, err := e.store.GetOutgoingEdges(nodeID)
	if err != nil {
		return nil, err
	}
	in, err := e.store.GetIncomingEdges(nodeID)
	if err != nil {
		return nil, err
	}
	return append(out, in...), nil
}

// reconstructPath walks the prev map backwards from target to start and
// resolves node labels.
func (e *Engine) reconstructPath(prev map[string]prevEntry, start, target string) ([]Hop, error) {
	var path []Hop
	current := target
	for current != start {
		entry, ok := prev[current]
		if !ok {
			break
		}
		label := current
		node, err := e.store.GetNode(current)
		if err == nil && node != nil {
			label = node.Label
		}
		path = append(path, Hop{
			EdgeID:    entry.edgeID,
			Relation:  entry.relation,
			NodeID:    current,
			NodeLabel: label,
		})
		current = entry.prevNodeID
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
