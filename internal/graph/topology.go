package graph

import "sort"

// HubNode is a node with high connectivity. Score is the
// confidence-weighted degree: the sum of incident edge confidences, so a
// node held together by doubtful edges ranks below one with the same
// degree of well-attested ones.
type HubNode struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Type       string  `json:"type"`
	Degree     int     `json:"degree"`
	InDegree   int     `json:"in_degree"`
	OutDegree  int     `json:"out_degree"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// DegreeBucket is one bucket in the degree histogram
type DegreeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TopologyReport contains topology analysis results
type TopologyReport struct {
	TotalNodes        int                `json:"total_nodes"`
	TotalEdges        int                `json:"total_edges"`
	NumComponents     int                `json:"num_components"`
	LargestComponent  int                `json:"largest_component"`
	SmallestComponent int                `json:"smallest_component"`
	Components        []ComponentSummary `json:"components"`
	OrphanCount       int                `json:"orphan_count"`
	OrphanIDs         []string           `json:"orphan_ids"`
	DegreeHistogram   []DegreeBucket     `json:"degree_histogram"`
	Hubs              []HubNode          `json:"hubs"`
}

// ComputeTopology analyzes graph topology: components with their type mix,
// orphans, degree distribution, and confidence-weighted hubs.
func ComputeTopology(snap *GraphSnapshot, hubThreshold, topN int) *TopologyReport {
	totalNodes := len(snap.Nodes)
	totalEdges := len(snap.Edges)

	if totalNodes == 0 {
		return &TopologyReport{
			DegreeHistogram: defaultHistogram(),
		}
	}

	nodeIDs := snap.NodeIDs()
	idx := newComponentIndex(nodeIDs)
	weighted := make(map[string]float64, totalNodes)
	for _, e := range snap.Edges {
		idx.union(e.Source, e.Target)
		weighted[e.Source] += e.Confidence
		weighted[e.Target] += e.Confidence
	}

	components := idx.summaries(snap.Nodes)
	numComponents := len(components)
	largest, smallest := 0, totalNodes
	for _, c := range components {
		if c.Size > largest {
			largest = c.Size
		}
		if c.Size < smallest {
			smallest = c.Size
		}
	}
	if len(components) > topN {
		components = components[:topN]
	}

	// Orphans: degree == 0
	var orphans []string
	for _, id := range nodeIDs {
		if len(snap.Adj[id]) == 0 {
			orphans = append(orphans, id)
		}
	}
	orphanCount := len(orphans)
	sort.Strings(orphans)
	if len(orphans) > topN {
		orphans = orphans[:topN]
	}

	// Degree histogram (log-scale buckets)
	buckets := [7]int{}
	for _, id := range nodeIDs {
		degree := len(snap.Adj[id])
		buckets[degreeBucket(degree)]++
	}
	histogram := defaultHistogram()
	for i := range histogram {
		histogram[i].Count = buckets[i]
	}

	// Hubs: degree above threshold, ranked by weighted score
	var hubs []HubNode
	for _, id := range nodeIDs {
		degree := len(snap.Adj[id])
		if degree > hubThreshold {
			node := snap.Nodes[id]
			hubs = append(hubs, HubNode{
				ID:         id,
				Label:      node.Label,
				Type:       node.Type,
				Degree:     degree,
				InDegree:   len(snap.InAdj[id]),
				OutDegree:  len(snap.OutAdj[id]),
				Score:      weighted[id],
				Confidence: node.Confidence,
			})
		}
	}
	sort.Slice(hubs, func(i, j int) bool {
		if hubs[i].Score != hubs[j].Score {
			return hubs[i].Score > hubs[j].Score
		}
		if hubs[i].Degree != hubs[j].Degree {
			return hubs[i].Degree > hubs[j].Degree
		}
		return hubs[i].ID < hubs[j].ID
	})
	if len(hubs) > topN {
		hubs = hubs[:topN]
	}

	return &TopologyReport{
		TotalNodes:        totalNodes,
		TotalEdges:        totalEdges,
		NumComponents:     numComponents,
		LargestComponent:  largest,
		SmallestComponent: smallest,
		Components:        components,
		OrphanCount:       orphanCount,
		OrphanIDs:         orphans,
		DegreeHistogram:   histogram,
		Hubs:              hubs,
	}
}

func defaultHistogram() []DegreeBucket {
	return []DegreeBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2-3"},
		{Label: "4-7"}, {Label: "8-15"}, {Label: "16-31"}, {Label: "32+"},
	}
}

func degreeBucket(degree int) int {
	switch {
	case degree == 0:
		return 0
	case degree == 1:
		return 1
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	case degree <= 15:
		return 4
	case degree <= 31:
		return 5
	default:
		return 6
	}
}
