package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"knowfed/kfn"
	"knowfed/kfn/internal/federation"
	"knowfed/kfn/internal/store"
	"knowfed/kfn/pkg/config"
	"knowfed/kfn/pkg/logger"
)

var (
	dbPath     string
	namespace  string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "kfn",
	Short: "Federated knowledge graph: store, query, synthesize, replicate",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to .kfn.db database")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "", "Graph namespace")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file")
}

// DiscoverDB finds the database path using priority: env > flag > walk-up > XDG fallback
func DiscoverDB() (string, error) {
	// 1. Environment variable
	if envPath := os.Getenv("KFN_DB"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	// 2. CLI flag
	if dbPath != "" {
		if _, err := os.Stat(dbPath); err == nil {
			return dbPath, nil
		}
		return "", fmt.Errorf("database not found at --db path: %s", dbPath)
	}

	// 3. Walk up from CWD
	dir, err := os.Getwd()
	if err == nil {
		for {
			candidate := filepath.Join(dir, ".kfn.db")
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// 4. XDG fallback
	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".local", "share", "kfn", "kfn.db")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath, nil
		}
	}

	return "", fmt.Errorf("no .kfn.db found (set KFN_DB, use --db, or run from a directory containing .kfn.db)")
}

// loadConfig merges the config file with CLI flag overrides. When no
// database path is configured, it is discovered; create allows a fresh
// path that does not exist yet.
func loadConfig(create bool) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if cfg.DBPath == "" {
		discovered, err := DiscoverDB()
		if err != nil {
			if !create {
				return nil, err
			}
			discovered = ".kfn.db"
		}
		cfg.DBPath = discovered
	}
	if namespace != "" {
		cfg.Namespace = namespace
	}
	return cfg, nil
}

// openSystem assembles the full stack for commands that need more than
// raw storage. Overrides adjust the loaded config before wiring.
func openSystem(create bool, overrides ...func(*config.Config)) (*kfn.System, *config.Config, error) {
	cfg, err := loadConfig(create)
	if err != nil {
		return nil, nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := logger.Init(cfg.Env); err != nil {
		return nil, nil, err
	}
	// Peers are base URLs of remote serve endpoints; bare names fail with
	// a pointer to the expected form.
	sys, err := kfn.NewSystem(cfg,
		kfn.WithLogger(logger.Get()),
		kfn.WithTransport(federation.NewHTTPTransport(nil)))
	if err != nil {
		return nil, nil, err
	}
	return sys, cfg, nil
}

// openStore opens just the storage layer.
func openStore(create bool) (*store.Store, error) {
	cfg, err := loadConfig(create)
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.DBPath, cfg.Namespace)
}

// ResolveNode finds a node by full ID, ID prefix, or label.
func ResolveNode(s *store.Store, reference string) (*store.Node, error) {
	// 1. Exact ID match
	node, err := s.GetNode(reference)
	if err == nil && node != nil {
		return node, nil
	}

	// 2. ID prefix match (≥6 hex/dash chars)
	if len(reference) >= 6 && isHexDash(reference) {
		all, err := s.ListNodes(store.NodeFilter{})
		if err == nil {
			var matches []store.Node
			for _, n := range all {
				if len(n.ID) >= len(reference) && n.ID[:len(reference)] == reference {
					matches = append(matches, n)
				}
			}
			switch len(matches) {
			case 1:
				return &matches[0], nil
			case 0:
				// fall through to label lookup
			default:
				lines := make([]string, len(matches))
				for i, m := range matches {
					lines[i] = fmt.Sprintf("  %s %s", truncID(m.ID), m.Label)
				}
				return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a full node ID instead.",
					reference, len(matches), joinLines(lines))
			}
		}
	}

	// 3. Normalized label lookup across known types
	all, err := s.ListNodes(store.NodeFilter{})
	if err == nil {
		want := store.NormalizeLabel(reference)
		var matches []store.Node
		for _, n := range all {
			if store.NormalizeLabel(n.Label) == want {
				matches = append(matches, n)
			}
		}
		switch len(matches) {
		case 1:
			return &matches[0], nil
		case 0:
			// fall through to not found
		default:
			limit := 10
			if len(matches) < limit {
				limit = len(matches)
			}
			lines := make([]string, limit)
			for i := 0; i < limit; i++ {
				lines[i] = fmt.Sprintf("  %s [%s] %s", truncID(matches[i].ID), matches[i].Type, matches[i].Label)
			}
			return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a node ID instead.",
				reference, len(matches), joinLines(lines))
		}
	}

	return nil, fmt.Errorf("node not found: %s", reference)
}

func isHexDash(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') || c == '-') {
			return false
		}
	}
	return true
}

func joinLines(lines []string) string {
	result := ""
	for i, l := range lines {
		if i > 0 {
			result += "\n"
		}
		result += l
	}
	return result
}
