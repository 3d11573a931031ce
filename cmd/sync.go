package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"knowfed/kfn"
	"knowfed/kfn/pkg/config"
	"knowfed/kfn/pkg/logger"
)

var (
	syncWatch       bool
	syncMetricsAddr string
	syncJSON        bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run replication rounds against configured peers",
	Long: `Sync exchanges deltas with every configured peer. Peers are base URLs
of remote "kfn serve" endpoints, e.g. http://peer-host:7557. Without
--watch one round runs per peer and the command exits; with --watch
rounds repeat on the configured interval until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// --watch needs the background scheduler regardless of the
		// configured mode.
		sys, cfg, err := openSystem(false, func(c *config.Config) {
			if syncWatch {
				c.Federation.SyncMode = "async"
			}
		})
		if err != nil {
			return err
		}
		defer sys.Close()

		if len(cfg.Federation.Peers) == 0 {
			return fmt.Errorf("no peers configured (set federation.peers or KFN_PEERS)")
		}

		addr := syncMetricsAddr
		if addr == "" {
			addr = cfg.MetricsAddr
		}
		if addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			go func() {
				if err := http.ListenAndServe(addr, mux); err != nil {
					logger.Get().Warn("metrics server", zap.Error(err))
				}
			}()
		}

		ctx := context.Background()
		if !syncWatch {
			if err := sys.Federation.Sync(ctx); err != nil {
				return err
			}
			return printSyncStatus(sys)
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		// One immediate sweep; the async override above means the system
		// already runs the background schedule, stopped by Close.
		if err := sys.Federation.Sync(ctx); err != nil {
			logger.Get().Warn("initial sync", zap.Error(err))
		}
		<-ctx.Done()
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-peer watermarks and last rounds",
	RunE: func(cmd *cobra.Command, args []string) error {
		sys, _, err := openSystem(false)
		if err != nil {
			return err
		}
		defer sys.Close()
		return printSyncStatus(sys)
	},
}

func printSyncStatus(sys *kfn.System) error {
	statuses, err := sys.Federation.Status()
	if err != nil {
		return err
	}
	if syncJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}
	for _, st := range statuses {
		fmt.Printf("peer %s  watermark=%d", st.Peer, st.Watermark)
		if st.LastRound != nil {
			fmt.Printf("  last=%s applied=%d pushed=%d conflicts=%d",
				st.LastRound.Status, st.LastRound.Applied, st.LastRound.Pushed, st.LastRound.Conflicts)
			if st.LastRound.Error != "" {
				fmt.Printf(" error=%q", st.LastRound.Error)
			}
		}
		fmt.Println()
	}
	return nil
}

func init() {
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "Keep syncing on the configured interval")
	syncCmd.Flags().StringVar(&syncMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	syncCmd.PersistentFlags().BoolVar(&syncJSON, "json", false, "Output as JSON")
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
