package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/optimystic/internal/block"
	"github.com/cuemby/optimystic/internal/blockstore"
	"github.com/cuemby/optimystic/internal/config"
	"github.com/cuemby/optimystic/internal/repository"
	"github.com/cuemby/optimystic/internal/transport"
	"github.com/cuemby/optimystic/pkg/log"
	"github.com/cuemby/optimystic/pkg/metrics"
)

// errNoArchive is returned by the restore callback wired into the
// Materializer: the DHT / archive layer that would resolve a missing
// revision range is out of scope for this spec (§1 OUT OF SCOPE), so a
// standalone peer cannot restore ranges it never locally held.
var errNoArchive = errors.New("serve: no archive source configured for this peer")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve this peer's storage repository over the transactor RPC",
	Long: `serve opens this peer's local block store (C4), wraps it in the
storage repository (C5), and exposes the transactor contract over
gRPC (§6) on listenAddr, plus a Prometheus /metrics endpoint on
metricsAddr.

Multi-collection transaction submission (C9) runs in-process against
a txn.Coordinator built from named collections; it is not yet exposed
as a peer RPC surface, so this command only serves the lower-level
Get/Pend/Commit/Cancel contract.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file (optional; documented §6 defaults otherwise)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger := log.WithComponent("cmd.serve")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("serve: create data dir: %w", err)
	}

	store, err := blockstore.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("serve: open block store: %w", err)
	}
	defer store.Close()

	restore := func(_ context.Context, id block.Id, targetRev block.Revision) (*blockstore.Archive, error) {
		return nil, fmt.Errorf("serve: restore block %s to rev %d: %w", id, targetRev, errNoArchive)
	}
	mat := blockstore.NewMaterializer(store, restore)

	repo := repository.New(store, mat, nil)

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("serve: listen on %s: %w", cfg.ListenAddr, err)
	}
	server := transport.NewServer(repo)

	serveErrCh := make(chan error, 1)
	go func() {
		if err := server.Serve(lis); err != nil {
			serveErrCh <- fmt.Errorf("transactor RPC server: %w", err)
		}
	}()
	logger.Info().Str("addr", cfg.ListenAddr).Str("mode", string(cfg.Mode)).Msg("transactor RPC listening")

	metrics.SetVersion(Version)
	metrics.RegisterComponent("blockstore", true, "ready")
	metrics.RegisterComponent("transactor", true, "ready")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serveErrCh:
		return err
	}

	server.Stop()
	return metricsServer.Shutdown(context.Background())
}
