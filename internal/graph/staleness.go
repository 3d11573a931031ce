package graph

import (
	"sort"
	"time"
)

// StaleNode is an entity that has not been re-observed for a long time but
// is still accumulating fresh references, so agents keep relying on
// potentially outdated knowledge.
type StaleNode struct {
	ID              string `json:"id"`
	Label           string `json:"label"`
	DaysSinceUpdate int64  `json:"days_since_update"`
	RecentRefCount  int    `json:"recent_reference_count"`
}

// DecayedNode is an old low-confidence entity, a candidate for
// re-synthesis or removal.
type DecayedNode struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	AgeDays    int64   `json:"age_days"`
}

// StalenessReport contains staleness analysis results.
type StalenessReport struct {
	StaleNodes     []StaleNode   `json:"stale_nodes"`
	DecayedNodes   []DecayedNode `json:"decayed_nodes"`
	StaleNodeCount int           `json:"stale_node_count"`
	DecayedCount   int           `json:"decayed_count"`
}

const decayConfidence = 0.5

// ComputeStaleness finds stale-but-referenced entities and decayed ones.
func ComputeStaleness(snap *GraphSnapshot, staleDays int64) *StalenessReport {
	nowMs := time.Now().UnixMilli()
	staleThresholdMs := staleDays * 86_400_000
	recentWindowMs := int64(7 * 86_400_000)

	var staleNodes []StaleNode
	var decayed []DecayedNode
	for _, node := range snap.Nodes {
		ageMs := nowMs - node.ObservedAt
		if ageMs <= staleThresholdMs {
			continue
		}

		if node.Confidence < decayConfidence {
			decayed = append(decayed, DecayedNode{
				ID:         node.ID,
				Label:      node.Label,
				Confidence: node.Confidence,
				AgeDays:    ageMs / 86_400_000,
			})
		}

		// Count recent incoming edges
		recentCount := 0
		for _, e := range snap.Edges {
			if e.Target == node.ID && e.Source != node.ID {
				if (nowMs - e.ObservedAt) < recentWindowMs {
					recentCount++
				}
			}
		}

		if recentCount > 0 {
			staleNodes = append(staleNodes, StaleNode{
				ID:              node.ID,
				Label:           node.Label,
				DaysSinceUpdate: ageMs / 86_400_000,
				RecentRefCount:  recentCount,
			})
		}
	}
	sort.Slice(staleNodes, func(i, j int) bool {
		return staleNodes[i].RecentRefCount > staleNodes[j].RecentRefCount
	})
	sort.Slice(decayed, func(i, j int) bool {
		return decayed[i].Confidence < decayed[j].Confidence
	})

	return &StalenessReport{
		StaleNodes:     staleNodes,
		DecayedNodes:   decayed,
		StaleNodeCount: len(staleNodes),
		DecayedCount:   len(decayed),
	}
}
