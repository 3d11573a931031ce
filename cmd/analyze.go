package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"knowfed/kfn/internal/graph"
)

var (
	analyzeJSON         bool
	analyzeTypes        []string
	analyzeTopN         int
	analyzeStaleDays    int64
	analyzeHubThreshold int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze graph structure: topology, staleness, bridges, health score",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		snap, err := graph.SnapshotFromStore(s)
		if err != nil {
			return fmt.Errorf("loading graph: %w", err)
		}

		if len(analyzeTypes) > 0 {
			snap = snap.FilterToTypes(analyzeTypes...)
		}

		config := &graph.AnalyzerConfig{
			HubThreshold: analyzeHubThreshold,
			TopN:         analyzeTopN,
			StaleDays:    analyzeStaleDays,
		}

		report := graph.Analyze(snap, config)

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printHumanReadable(report)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Output as JSON")
	analyzeCmd.Flags().StringSliceVar(&analyzeTypes, "type", nil, "Restrict analysis to these entity types")
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top", 50, "Max entries per report section")
	analyzeCmd.Flags().Int64Var(&analyzeStaleDays, "stale-days", 30, "Age in days before an entity counts as stale")
	analyzeCmd.Flags().IntVar(&analyzeHubThreshold, "hub-threshold", 10, "Degree above which a node is a hub")
	rootCmd.AddCommand(analyzeCmd)
}

func printHumanReadable(report *graph.AnalysisReport) {
	// Health bar
	barLen := int(report.HealthScore * 20)
	if barLen > 20 {
		barLen = 20
	}
	bar := strings.Repeat("█", barLen) + strings.Repeat("░", 20-barLen)
	fmt.Printf("\n  Graph Health: %.0f%%  [%s]\n", report.HealthScore*100, bar)
	fmt.Printf("  breakdown: connectivity=%.2f coverage=%.2f staleness=%.2f confidence=%.2f fragility=%.2f\n\n",
		report.HealthBreakdown.Connectivity,
		report.HealthBreakdown.Coverage,
		report.HealthBreakdown.Staleness,
		report.HealthBreakdown.Confidence,
		report.HealthBreakdown.Fragility)

	// Topology
	t := report.Topology
	fmt.Println("  TOPOLOGY")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Nodes: %d  Edges: %d  Components: %d\n", t.TotalNodes, t.TotalEdges, t.NumComponents)
	fmt.Printf("  Largest component: %d  Smallest: %d\n", t.LargestComponent, t.SmallestComponent)

	if len(t.Components) > 1 {
		fmt.Println("  Component breakdown:")
		limit := 5
		if len(t.Components) < limit {
			limit = len(t.Components)
		}
		for _, c := range t.Components[:limit] {
			fmt.Printf("    %4d nodes  mostly %-12s  mean confidence %.2f\n",
				c.Size, c.DominantType, c.MeanConfidence)
		}
		if len(t.Components) > limit {
			fmt.Printf("    ... and %d more\n", len(t.Components)-limit)
		}
	}

	if t.OrphanCount > 0 {
		fmt.Printf("  Orphans: %d disconnected nodes\n", t.OrphanCount)
		limit := 5
		if len(t.OrphanIDs) < limit {
			limit = len(t.OrphanIDs)
		}
		for _, id := range t.OrphanIDs[:limit] {
			fmt.Printf("    - %s\n", truncID(id))
		}
		if t.OrphanCount > 5 {
			fmt.Printf("    ... and %d more\n", t.OrphanCount-5)
		}
	}

	// Degree distribution
	fmt.Println("\n  Degree distribution:")
	for _, b := range t.DegreeHistogram {
		if b.Count > 0 {
			barWidth := int(math.Log2(float64(b.Count))) + 2
			if barWidth < 1 {
				barWidth = 1
			}
			fmt.Printf("    %5s: %4d  %s\n", b.Label, b.Count, strings.Repeat("=", barWidth))
		}
	}

	// Hubs
	if len(t.Hubs) > 0 {
		fmt.Println("\n  Top hubs (by confidence-weighted degree):")
		for _, hub := range t.Hubs {
			fmt.Printf("    %s score=%.1f degree=%d (in=%d, out=%d)  %s\n",
				truncID(hub.ID), hub.Score, hub.Degree, hub.InDegree, hub.OutDegree, truncLabel(hub.Label, 40))
		}
	}

	// Staleness
	s := report.Staleness
	if s.StaleNodeCount > 0 || s.DecayedCount > 0 {
		fmt.Println("\n  STALENESS")
		fmt.Println("  ────────────────────────────────────────")
		if s.StaleNodeCount > 0 {
			fmt.Printf("  %d stale entities (old but recently referenced):\n", s.StaleNodeCount)
			limit := 10
			if len(s.StaleNodes) < limit {
				limit = len(s.StaleNodes)
			}
			for _, n := range s.StaleNodes[:limit] {
				fmt.Printf("    %s %dd old, %d recent refs  %s\n",
					truncID(n.ID), n.DaysSinceUpdate, n.RecentRefCount, truncLabel(n.Label, 40))
			}
		}
		if s.DecayedCount > 0 {
			fmt.Printf("  %d decayed entities (old and low-confidence):\n", s.DecayedCount)
			limit := 10
			if len(s.DecayedNodes) < limit {
				limit = len(s.DecayedNodes)
			}
			for _, n := range s.DecayedNodes[:limit] {
				fmt.Printf("    %s c=%.2f %dd old  %s\n",
					truncID(n.ID), n.Confidence, n.AgeDays, truncLabel(n.Label, 40))
			}
		}
	}

	// Bridges
	br := report.Bridges
	if br.APCount > 0 || br.BridgeCount > 0 || len(br.FragileConnections) > 0 {
		fmt.Println("\n  STRUCTURAL FRAGILITY")
		fmt.Println("  ────────────────────────────────────────")
		if br.APCount > 0 {
			fmt.Printf("  %d articulation points (removal disconnects graph):\n", br.APCount)
			limit := 10
			if len(br.ArticulationPoints) < limit {
				limit = len(br.ArticulationPoints)
			}
			for _, ap := range br.ArticulationPoints[:limit] {
				fmt.Printf("    %s c=%.2f degree=%d  %s\n",
					truncID(ap.ID), ap.Confidence, ap.Degree, truncLabel(ap.Label, 40))
			}
		}
		if br.BridgeCount > 0 {
			fmt.Printf("  %d bridge edges (removal disconnects graph):\n", br.BridgeCount)
			limit := 10
			if len(br.BridgeEdges) < limit {
				limit = len(br.BridgeEdges)
			}
			for _, be := range br.BridgeEdges[:limit] {
				fmt.Printf("    %s -[%s]-> %s\n",
					truncLabel(be.SourceLabel, 30), be.Relation, truncLabel(be.TargetLabel, 30))
			}
		}
		if len(br.FragileConnections) > 0 {
			fmt.Printf("  %d fragile cross-type connections (<=2 edges):\n", len(br.FragileConnections))
			limit := 10
			if len(br.FragileConnections) < limit {
				limit = len(br.FragileConnections)
			}
			for _, fc := range br.FragileConnections[:limit] {
				s := ""
				if fc.CrossEdges != 1 {
					s = "s"
				}
				fmt.Printf("    %s <-> %s (%d edge%s)\n", fc.TypeA, fc.TypeB, fc.CrossEdges, s)
			}
		}
	}

	fmt.Println()
}

func truncID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncLabel(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Find a safe UTF-8 boundary
	truncated := s[:max]
	for len(truncated) > 0 && truncated[len(truncated)-1]>>6 == 2 {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "..."
}
