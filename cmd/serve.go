package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"knowfed/kfn/internal/federation"
	"knowfed/kfn/pkg/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve replication endpoints for remote peers",
	Long: `Serve exposes this store's replication endpoints over HTTP so remote
peers can pull from and push to it with "kfn sync". Prometheus metrics
are served on /metrics. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sys, cfg, err := openSystem(false)
		if err != nil {
			return err
		}
		defer sys.Close()

		addr := serveAddr
		if addr == "" && cfg.MetricsAddr != "" {
			addr = cfg.MetricsAddr
		}
		if addr == "" {
			addr = ":7557"
		}

		mux := http.NewServeMux()
		mux.Handle("/replication/", federation.NewHandler(sys.Replicator, logger.Get()))
		mux.Handle("/metrics", promhttp.Handler())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{Addr: addr, Handler: mux}
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		logger.Get().Info("serving replication endpoints",
			zap.String("addr", addr),
			zap.String("namespace", cfg.Namespace))

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default :7557)")
	rootCmd.AddCommand(serveCmd)
}
