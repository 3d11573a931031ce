package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"knowfed/kfn/internal/store"
)

var (
	edgeRelation      string
	edgeWeight        float64
	edgeBidirectional bool
	edgeConfidence    float64
	edgeAgentID       string
	edgeJSON          bool
)

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Create, list and delete relations between entities",
}

var edgeAddCmd = &cobra.Command{
	Use:   "add <source> <target>",
	Short: "Create an edge between two nodes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		src, err := ResolveNode(s, args[0])
		if err != nil {
			return err
		}
		dst, err := ResolveNode(s, args[1])
		if err != nil {
			return err
		}

		e, err := s.CreateEdge(store.EdgeSpec{
			SourceID:      src.ID,
			TargetID:      dst.ID,
			Relation:      edgeRelation,
			Weight:        edgeWeight,
			Bidirectional: edgeBidirectional,
			Confidence:    edgeConfidence,
			AgentID:       edgeAgentID,
		})
		if err != nil {
			return err
		}
		if edgeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(e)
		}
		fmt.Printf("%s  %s -[%s]-> %s\n", truncID(e.ID), src.Label, e.Relation, dst.Label)
		return nil
	},
}

var edgeDeleteCmd = &cobra.Command{
	Use:   "delete <edge-id>",
	Short: "Soft-delete an edge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.DeleteEdge(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted edge %s\n", truncID(args[0]))
		return nil
	},
}

var edgeListCmd = &cobra.Command{
	Use:   "list <id|label>",
	Short: "List edges touching a node",
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
		out, err := s.GetOutgoingEdges(n.ID)
		if err != nil {
			return err
		}
		in, err := s.GetIncomingEdges(n.ID)
		if err != nil {
			return err
		}

		if edgeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string][]store.Edge{"outgoing": out, "incoming": in})
		}
		for _, e := range out {
			fmt.Printf("%s  -[%s]-> %s\n", truncID(e.ID), e.Relation, truncID(e.TargetID))
		}
		for _, e := range in {
			fmt.Printf("%s  <-[%s]- %s\n", truncID(e.ID), e.Relation, truncID(e.SourceID))
		}
		return nil
	},
}

func init() {
	edgeAddCmd.Flags().StringVar(&edgeRelation, "relation", "related", "Relation name")
	edgeAddCmd.Flags().Float64Var(&edgeWeight, "weight", 1.0, "Edge weight")
	edgeAddCmd.Flags().BoolVar(&edgeBidirectional, "bidirectional", false, "Traversable in both directions")
	edgeAddCmd.Flags().Float64Var(&edgeConfidence, "confidence", 0.8, "Confidence in [0,1]")
	edgeAddCmd.Flags().StringVar(&edgeAgentID, "agent", "", "Agent id recorded as provenance")

	edgeCmd.PersistentFlags().BoolVar(&edgeJSON, "json", false, "Output as JSON")
	edgeCmd.AddCommand(edgeAddCmd, edgeDeleteCmd, edgeListCmd)
	rootCmd.AddCommand(edgeCmd)
}
