package graph

import "sort"

// ComponentSummary describes one connected component: its size, the mix
// of entity types inside it, and the mean node confidence. A component
// dominated by a single type is an isolated silo; the dominant type makes
// those visible at a glance.
type ComponentSummary struct {
	Size           int            `json:"size"`
	DominantType   string         `json:"dominant_type"`
	TypeCounts     map[string]int `json:"type_counts"`
	MeanConfidence float64        `json:"mean_confidence"`
}

// componentIndex is a union-find over snapshot node ids, union by size
// with path halving. Roots are arbitrary; summaries aggregate per root.
type componentIndex struct {
	parent map[string]string
	size   map[string]int
}

func newComponentIndex(ids []string) *componentIndex {
	c := &componentIndex{
		parent: make(map[string]string, len(ids)),
		size:   make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		c.parent[id] = id
		c.size[id] = 1
	}
	return c
}

func (c *componentIndex) find(id string) string {
	for c.parent[id] != id {
		c.parent[id] = c.parent[c.parent[id]]
		id = c.parent[id]
	}
	return id
}

func (c *componentIndex) union(a, b string) bool {
	ra, rb := c.find(a), c.find(b)
	if ra == rb {
		return false
	}
	if c.size[ra] < c.size[rb] {
		ra, rb = rb, ra
	}
	c.parent[rb] = ra
	c.size[ra] += c.size[rb]
	return true
}

// summaries aggregates every component over the node set, largest first
// (ties by dominant type for deterministic output).
func (c *componentIndex) summaries(nodes map[string]*NodeInfo) []ComponentSummary {
	type agg struct {
		size       int
		confidence float64
		types      map[string]int
	}
	byRoot := make(map[string]*agg)
	for id := range c.parent {
		node, ok := nodes[id]
		if !ok {
			continue
		}
		root := c.find(id)
		a := byRoot[root]
		if a == nil {
			a = &agg{types: make(map[string]int)}
			byRoot[root] = a
		}
		a.size++
		a.confidence += node.Confidence
		typ := node.Type
		if typ == "" {
			typ = "untyped"
		}
		a.types[typ]++
	}

	out := make([]ComponentSummary, 0, len(byRoot))
	for _, a := range byRoot {
		dominant := ""
		for typ, count := range a.types {
			if dominant == "" || count > a.types[dominant] ||
				count == a.types[dominant] && typ < dominant {
				dominant = typ
			}
		}
		out = append(out, ComponentSummary{
			Size:           a.size,
			DominantType:   dominant,
			TypeCounts:     a.types,
			MeanConfidence: a.confidence / float64(a.size),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].DominantType < out[j].DominantType
	})
	return out
}
