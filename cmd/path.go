package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"knowfed/kfn/internal/store"
)

var (
	pathMaxHops   int
	pathJSON      bool
	neighborsDir  string
	neighborsJSON bool
)

var pathCmd = &cobra.Command{
	Use:   "path <start> <end>",
	Short: "Find the shortest path between two nodes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		start, err := ResolveNode(s, args[0])
		if err != nil {
			return err
		}
		end, err := ResolveNode(s, args[1])
		if err != nil {
			return err
		}

		p, err := s.FindShortestPath(store.PathQuery{
			StartNodeID: start.ID,
			EndNodeID:   end.ID,
			MaxHops:     pathMaxHops,
		})
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Printf("no path from %q to %q within %d hops\n", start.Label, end.Label, pathMaxHops)
			return nil
		}
		if pathJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}
		for i, n := range p.Nodes {
			if i > 0 {
				fmt.Printf("  -[%s]->\n", p.Edges[i-1].Relation)
			}
			fmt.Printf("%s  %s\n", truncID(n.ID), n.Label)
		}
		fmt.Printf("(%d hops)\n", p.Hops())
		return nil
	},
}

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <id|label>",
	Short: "List a node's direct neighbors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := ResolveNode(s, args[0])
		if err != nil {
			return err
		}
		neighbors, err := s.GetNeighbors(n.ID, store.Direction(neighborsDir))
		if err != nil {
			return err
		}
		if neighborsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(neighbors)
		}
		for _, nb := range neighbors {
			fmt.Printf("%s  [%s] %s\n", truncID(nb.ID), nb.Type, nb.Label)
		}
		return nil
	},
}

var degreeCmd = &cobra.Command{
	Use:   "degree <id|label>",
	Short: "Show a node's connectivity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := ResolveNode(s, args[0])
		if err != nil {
			return err
		}
		d, err := s.NodeDegree(n.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s  out=%d in=%d total=%d\n", n.Label, d.OutDegree, d.InDegree, d.TotalDegree)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the live graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.GraphStats()
		if err != nil {
			return err
		}
		fmt.Printf("nodes: %d  edges: %d\n", stats.NodeCount, stats.EdgeCount)
		for typ, count := range stats.NodesByType {
			fmt.Printf("  %s: %d\n", typ, count)
		}
		return nil
	},
}

func init() {
	pathCmd.Flags().IntVar(&pathMaxHops, "max-hops", 6, "Hop budget for the search")
	pathCmd.Flags().BoolVar(&pathJSON, "json", false, "Output as JSON")
	neighborsCmd.Flags().StringVar(&neighborsDir, "direction", "both", "outgoing, incoming or both")
	neighborsCmd.Flags().BoolVar(&neighborsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(pathCmd, neighborsCmd, degreeCmd, statsCmd)
}
