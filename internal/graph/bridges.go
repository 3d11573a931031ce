package graph

import "sort"

// ArticulationPoint is a node whose removal disconnects the graph. A
// low-confidence articulation point is the weakest link in the federation:
// doubtful knowledge that everything else routes through.
type ArticulationPoint struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Type       string  `json:"type"`
	Degree     int     `json:"degree"`
	Confidence float64 `json:"confidence"`
}

// BridgeEdge is an edge whose removal disconnects the graph.
type BridgeEdge struct {
	SourceID    string `json:"source_id"`
	TargetID    string `json:"target_id"`
	SourceLabel string `json:"source_label"`
	TargetLabel string `json:"target_label"`
	Relation    string `json:"relation"`
}

// FragileConnection represents two entity types with very few cross-edges
type FragileConnection struct {
	TypeA      string `json:"type_a"`
	TypeB      string `json:"type_b"`
	CrossEdges int    `json:"cross_edges"`
}

// BridgeReport contains bridge analysis results
type BridgeReport struct {
	ArticulationPoints []ArticulationPoint `json:"articulation_points"`
	BridgeEdges        []BridgeEdge        `json:"bridge_edges"`
	FragileConnections []FragileConnection `json:"fragile_connections"`
	APCount            int                 `json:"ap_count"`
	BridgeCount        int                 `json:"bridge_count"`
}

// ComputeBridges finds articulation points, bridge edges, and fragile
// cross-type connections
func ComputeBridges(snap *GraphSnapshot) *BridgeReport {
	if len(snap.Nodes) == 0 {
		return &BridgeReport{}
	}

	// Map node IDs to indices
	nodeIDs := snap.NodeIDs()
	idToIdx := make(map[string]int, len(nodeIDs))
	for i, id := range nodeIDs {
		idToIdx[id] = i
	}
	n := len(nodeIDs)

	// Build deduplicated undirected adjacency (as indices), remembering
	// which relation connects each pair so bridges report it.
	adjIdx := make([][]int, n)
	type edgePair struct{ u, v int }
	seen := make(map[edgePair]bool)
	pairRelation := make(map[edgePair]string)

	for _, e := range snap.Edges {
		u, okU := idToIdx[e.Source]
		v, okV := idToIdx[e.Target]
		if !okU || !okV || u == v {
			continue
		}
		key := edgePair{u, v}
		if u > v {
			key = edgePair{v, u}
		}
		if !seen[key] {
			seen[key] = true
			pairRelation[key] = e.Relation
			adjIdx[u] = append(adjIdx[u], v)
			adjIdx[v] = append(adjIdx[v], u)
		}
	}

	disc := make([]int, n)
	low := make([]int, n)
	visited := make([]bool, n)
	isAP := make([]bool, n)
	var bridgePairs [][2]int
	counter := 1

	const noParent = -1

	// Iterative Tarjan for each connected component
	type frame struct {
		node, parent, ni int
	}

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}

		visited[start] = true
		disc[start] = counter
		low[start] = counter
		counter++

		stack := []frame{{start, noParent, 0}}
		rootChildren := 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			node := top.node
			parent := top.parent

			if top.ni < len(adjIdx[node]) {
				child := adjIdx[node][top.ni]
				top.ni++

				if child == parent {
					continue
				}

				if visited[child] {
					// Back edge
					if disc[child] < low[node] {
						low[node] = disc[child]
					}
				} else {
					// Tree edge
					visited[child] = true
					disc[child] = counter
					low[child] = counter
					counter++

					if node == start {
						rootChildren++
					}

					stack = append(stack, frame{child, node, 0})
				}
			} else {
				// Done with this node, pop and propagate
				stack = stack[:len(stack)-1]

				if len(stack) > 0 {
					parentFrame := &stack[len(stack)-1]
					pn := parentFrame.node

					if low[node] < low[pn] {
						low[pn] = low[node]
					}

					// Bridge check
					if low[node] > disc[pn] {
						bridgePairs = append(bridgePairs, [2]int{pn, node})
					}

					// AP check (non-root)
					if pn != start && low[node] >= disc[pn] {
						isAP[pn] = true
					}
				}
			}
		}

		// Root is AP if 2+ tree children
		if rootChildren >= 2 {
			isAP[start] = true
		}
	}

	// Articulation points, weakest (lowest confidence) first so the most
	// fragile load-bearing knowledge tops the report.
	var aps []ArticulationPoint
	for i := 0; i < n; i++ {
		if isAP[i] {
			id := nodeIDs[i]
			node := snap.Nodes[id]
			aps = append(aps, ArticulationPoint{
				ID:         id,
				Label:      node.Label,
				Type:       node.Type,
				Degree:     len(adjIdx[i]),
				Confidence: node.Confidence,
			})
		}
	}
	sort.Slice(aps, func(i, j int) bool {
		if aps[i].Confidence != aps[j].Confidence {
			return aps[i].Confidence < aps[j].Confidence
		}
		if aps[i].Degree != aps[j].Degree {
			return aps[i].Degree > aps[j].Degree
		}
		return aps[i].ID < aps[j].ID
	})

	var bridges []BridgeEdge
	for _, pair := range bridgePairs {
		uid := nodeIDs[pair[0]]
		vid := nodeIDs[pair[1]]
		key := edgePair{pair[0], pair[1]}
		if pair[0] > pair[1] {
			key = edgePair{pair[1], pair[0]}
		}
		bridges = append(bridges, BridgeEdge{
			SourceID:    uid,
			TargetID:    vid,
			SourceLabel: snap.Nodes[uid].Label,
			TargetLabel: snap.Nodes[vid].Label,
			Relation:    pairRelation[key],
		})
	}
	sort.Slice(bridges, func(i, j int) bool {
		if bridges[i].SourceID != bridges[j].SourceID {
			return bridges[i].SourceID < bridges[j].SourceID
		}
		return bridges[i].TargetID < bridges[j].TargetID
	})

	// Fragile connections: cross-type edge counts
	type typePair struct{ a, b string }
	pairCounts := make(map[typePair]int)
	for _, e := range snap.Edges {
		ta := snap.Nodes[e.Source].Type
		tb := snap.Nodes[e.Target].Type
		if ta == "" {
			ta = "untyped"
		}
		if tb == "" {
			tb = "untyped"
		}
		if ta == tb {
			continue
		}
		key := typePair{ta, tb}
		if ta > tb {
			key = typePair{tb, ta}
		}
		pairCounts[key]++
	}

	var fragile []FragileConnection
	for pair, count := range pairCounts {
		if count <= 2 {
			fragile = append(fragile, FragileConnection{
				TypeA:      pair.a,
				TypeB:      pair.b,
				CrossEdges: count,
			})
		}
	}
	sort.Slice(fragile, func(i, j int) bool {
		if fragile[i].CrossEdges != fragile[j].CrossEdges {
			return fragile[i].CrossEdges < fragile[j].CrossEdges
		}
		if fragile[i].TypeA != fragile[j].TypeA {
			return fragile[i].TypeA < fragile[j].TypeA
		}
		return fragile[i].TypeB < fragile[j].TypeB
	})

	return &BridgeReport{
		ArticulationPoints: aps,
		BridgeEdges:        bridges,
		FragileConnections: fragile,
		APCount:            len(aps),
		BridgeCount:        len(bridges),
	}
}
