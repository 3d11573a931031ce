package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"knowfed/kfn/internal/query"
)

var (
	queryLimit     int
	queryJSON      bool
	findJSON       bool
	relatedBudget  int
	relatedMaxHops int
	relatedRels    []string
	relatedExclude []string
	relatedJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text...>",
	Short: "Keyword search across labels and properties",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		engine := query.New(s)
		res, err := engine.Query(query.Request{
			Text:    strings.Join(args, " "),
			Options: query.Options{Limit: queryLimit},
		})
		if err != nil {
			return err
		}
		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		for _, n := range res.Nodes {
			fmt.Printf("%s  [%s] c=%.2f  %s\n", truncID(n.ID), n.Type, n.Confidence, n.Label)
		}
		fmt.Printf("(%d matches, %.1fms)\n", res.Metadata.TotalMatches, res.Metadata.ExecutionTimeMs)
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:   "find <key> <value>",
	Short: "Find nodes by exact property value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(false)
		if err != nil {
			return err
		}
		defer s.Close()

		// Values that parse as JSON keep their type, so `find born 1815`
		// matches a numeric property.
		var value any = args[1]
		var parsed any
		if err := json.Unmarshal([]byte(args[1]), &parsed); err == nil {
			value = parsed
		}

		engine := query.New(s)
		nodes, err := engine.FindByProperty(args[0], value)
		if err != nil {
			return err
		}
		if findJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(nodes)
		}
		for _, n := range nodes {
			fmt.Printf("%s  [%s] %s\n", truncID(n.ID), n.Type, n.Label)
		}
		return nil
	},
}

var relatedCmd = &cobra.Command{
	Use:   "related <id|label>",
	Short: "Expand associated entities by traversal cost",
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
		opts := query.DefaultRelatedOptions()
		opts.Budget = relatedBudget
		opts.MaxHops = relatedMaxHops
		opts.Relations = relatedRels
		opts.ExcludeRelations = relatedExclude

		engine := query.New(s)
		related, err := engine.Related(n.ID, opts)
		if err != nil {
			return err
		}
		if relatedJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(related)
		}
		for _, r := range related {
			fmt.Printf("%2d. %s  d=%.3f hops=%d  %s\n", r.Rank, truncID(r.Node.ID), r.Distance, r.Hops, r.Node.Label)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVar(&queryLimit, "limit", 20, "Maximum results")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Output as JSON")
	findCmd.Flags().BoolVar(&findJSON, "json", false, "Output as JSON")
	relatedCmd.Flags().IntVar(&relatedBudget, "budget", 20, "Maximum related nodes")
	relatedCmd.Flags().IntVar(&relatedMaxHops, "max-hops", 6, "Hop budget")
	relatedCmd.Flags().StringSliceVar(&relatedRels, "relation", nil, "Only follow these relations")
	relatedCmd.Flags().StringSliceVar(&relatedExclude, "exclude-relation", nil, "Never follow these relations")
	relatedCmd.Flags().BoolVar(&relatedJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(queryCmd, findCmd, relatedCmd)
}
