package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"knowfed/kfn/internal/store"
)

var (
	nodeType       string
	nodeLabel      string
	nodeProps      []string
	nodeConfidence float64
	nodeAgentID    string
	nodeVersion    int64
	nodeJSON       bool
	listType       string
	listMinConf    float64
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Create, inspect, update and delete graph entities",
}

var nodeAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Create a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(true)
		if err != nil {
			return err
		}
		defer s.Close()

		props, err := parseProps(nodeProps)
		if err != nil {
			return err
		}
		n, err := s.CreateNode(store.NodeSpec{
			Type:       nodeType,
			Label:      args[0],
			Properties: props,
			Confidence: nodeConfidence,
			AgentID:    nodeAgentID,
		})
		if err != nil {
			return err
		}
		return printNode(n)
	},
}

var nodeGetCmd = &cobra.Command{
	Use:   "get <id|label>",
	Short: "Show a node",
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
		return printNode(n)
	},
}

var nodeUpdateCmd = &cobra.Command{
	Use:   "update <id|label>",
	Short: "Update a node (requires --version for the expected version)",
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
		expected := nodeVersion
		if expected == 0 {
			expected = n.Version
		}

		patch := store.NodePatch{}
		if cmd.Flags().Changed("label") {
			patch.Label = &nodeLabel
		}
		if cmd.Flags().Changed("confidence") {
			patch.Confidence = &nodeConfidence
		}
		if len(nodeProps) > 0 {
			props, err := parseProps(nodeProps)
			if err != nil {
				return err
			}
			patch.Properties = props
		}

		updated, err := s.UpdateNode(n.ID, patch, expected)
		if store.IsVersionConflict(err) {
			return fmt.Errorf("%w (re-read the node and retry with --version)", err)
		}
		if err != nil {
			return err
		}
		return printNode(updated)
	},
}

var nodeDeleteCmd = &cobra.Command{
	Use:   "delete <id|label>",
	Short: "Soft-delete a node (tombstone, propagated to peers)",
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
		if err := s.DeleteNode(n.ID); err != nil {
			return err
		}
		fmt.Printf("deleted %s (%s)\n", truncID(n.ID), n.Label)
		return nil
	},
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		filter := store.NodeFilter{Type: listType}
		if cmd.Flags().Changed("min-confidence") {
			filter.MinConfidence = &listMinConf
		}
		nodes, err := s.ListNodes(filter)
		if err != nil {
			return err
		}
		if nodeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(nodes)
		}
		for _, n := range nodes {
			fmt.Printf("%s  [%s] v%d c=%.2f  %s\n", truncID(n.ID), n.Type, n.Version, n.Confidence, n.Label)
		}
		return nil
	},
}

func printNode(n *store.Node) error {
	if nodeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(n)
	}
	fmt.Printf("id:         %s\n", n.ID)
	fmt.Printf("type:       %s\n", n.Type)
	fmt.Printf("label:      %s\n", n.Label)
	fmt.Printf("version:    %d\n", n.Version)
	fmt.Printf("confidence: %.2f\n", n.Confidence)
	fmt.Printf("source:     %s @ %d\n", n.Source.AgentID, n.Source.Timestamp)
	if len(n.Properties) > 0 {
		raw, _ := json.Marshal(n.Properties)
		fmt.Printf("properties: %s\n", raw)
	}
	return nil
}

// parseProps turns key=value pairs into a property map. Values that parse
// as JSON keep their type; everything else is a string.
func parseProps(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	props := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid property %q, want key=value", pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			props[key] = parsed
		} else {
			props[key] = value
		}
	}
	return props, nil
}

func init() {
	nodeAddCmd.Flags().StringVar(&nodeType, "type", "concept", "Node type")
	nodeAddCmd.Flags().Float64Var(&nodeConfidence, "confidence", 0.8, "Confidence in [0,1]")
	nodeAddCmd.Flags().StringVar(&nodeAgentID, "agent", "", "Agent id recorded as provenance")
	nodeAddCmd.Flags().StringArrayVar(&nodeProps, "prop", nil, "Property as key=value (repeatable)")

	nodeUpdateCmd.Flags().StringVar(&nodeLabel, "label", "", "New label")
	nodeUpdateCmd.Flags().Float64Var(&nodeConfidence, "confidence", 0, "New confidence")
	nodeUpdateCmd.Flags().Int64Var(&nodeVersion, "version", 0, "Expected current version (0 = last read)")
	nodeUpdateCmd.Flags().StringArrayVar(&nodeProps, "prop", nil, "Property as key=value (repeatable)")

	nodeListCmd.Flags().StringVar(&listType, "type", "", "Filter by type")
	nodeListCmd.Flags().Float64Var(&listMinConf, "min-confidence", 0, "Minimum confidence")

	nodeCmd.PersistentFlags().BoolVar(&nodeJSON, "json", false, "Output as JSON")
	nodeCmd.AddCommand(nodeAddCmd, nodeGetCmd, nodeUpdateCmd, nodeDeleteCmd, nodeListCmd)
	rootCmd.AddCommand(nodeCmd)
}
