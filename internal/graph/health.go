package graph

import "math"

// HealthBreakdown shows the sub-scores of the health formula. Coverage is
// the share of nodes reachable inside the largest component; Confidence
// the mean node confidence across the snapshot.
type HealthBreakdown struct {
	Connectivity float64 `json:"connectivity"`
	Coverage     float64 `json:"coverage"`
	Staleness    float64 `json:"staleness"`
	Confidence   float64 `json:"confidence"`
	Fragility    float64 `json:"fragility"`
}

// AnalysisReport is the full analysis result
type AnalysisReport struct {
	HealthScore     float64          `json:"health_score"`
	HealthBreakdown HealthBreakdown  `json:"health_breakdown"`
	Topology        *TopologyReport  `json:"topology"`
	Staleness       *StalenessReport `json:"staleness"`
	Bridges         *BridgeReport    `json:"bridges"`
}

// AnalyzerConfig holds analysis parameters
type AnalyzerConfig struct {
	HubThreshold int
	TopN         int
	StaleDays    int64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		HubThreshold: 10,
		TopN:         50,
		StaleDays:    30,
	}
}

// Analyze runs all analyses and computes a composite health score:
// few orphans, one dominant component, fresh entities, confident
// entities, few structural single points of failure.
func Analyze(snap *GraphSnapshot, config *AnalyzerConfig) *AnalysisReport {
	topology := ComputeTopology(snap, config.HubThreshold, config.TopN)
	staleness := ComputeStaleness(snap, config.StaleDays)
	bridges := ComputeBridges(snap)

	total := float64(topology.TotalNodes)

	var connectivity, coverage, stalenessScore, confidence, fragility float64

	if total > 0 {
		connectivity = clamp(1.0-math.Min(float64(topology.OrphanCount)/total, 0.2)*5.0, 0, 1)
		coverage = clamp(float64(topology.LargestComponent)/total, 0, 1)
		stalenessScore = clamp(1.0-math.Min(float64(staleness.StaleNodeCount)/total, 0.1)*10.0, 0, 1)
		fragility = clamp(1.0-math.Min(float64(bridges.APCount)/total, 0.05)*20.0, 0, 1)

		var confidenceSum float64
		for _, node := range snap.Nodes {
			confidenceSum += node.Confidence
		}
		confidence = clamp(confidenceSum/total, 0, 1)
	}

	healthScore := 0.25*connectivity + 0.25*coverage + 0.20*stalenessScore +
		0.15*confidence + 0.15*fragility

	return &AnalysisReport{
		HealthScore: healthScore,
		HealthBreakdown: HealthBreakdown{
			Connectivity: connectivity,
			Coverage:     coverage,
			Staleness:    stalenessScore,
			Confidence:   confidence,
			Fragility:    fragility,
		},
		Topology:  topology,
		Staleness: staleness,
		Bridges:   bridges,
	}
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
