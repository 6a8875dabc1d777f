package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thenoetrevino/livekanban/internal/api"
	"github.com/thenoetrevino/livekanban/internal/cli"
	"github.com/thenoetrevino/livekanban/internal/daemon"
	"github.com/thenoetrevino/livekanban/internal/database"
	"github.com/thenoetrevino/livekanban/internal/logging"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hub daemon, optionally with the HTTP API",
		Long: `Run the hub daemon that relays board changes between clients on this
machine. With --http, the board API is also served and every write made
through it is announced to connected boards.

Examples:
  livekanban serve
  livekanban serve --http :8080
`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("http", "", "Serve the HTTP API on this address")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := cli.ConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	level, _ := cmd.Flags().GetString("log-level")
	logger := logging.New(cmd.ErrOrStderr(), logging.ParseLevel(level))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	socketPath := cfg.Transport.SocketPath
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	hub, err := daemon.NewServer(socketPath, daemon.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	var srv *api.Server
	addr, _ := cmd.Flags().GetString("http")
	if addr != "" {
		db, err := database.Open(ctx, cfg.Backend.DBPath)
		if err != nil {
			_ = hub.Shutdown()
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer func() { _ = db.Close() }()

		repo := database.NewRepository(db,
			database.WithPublisher(hub, cfg.Channel),
			database.WithLogger(logger),
		)
		srv = api.NewServer(repo.ProjectRepo, repo.TaskRepo,
			api.WithServerLogger(logger),
			api.WithHubMetrics(func() any { return hub.Metrics().Snapshot() }),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Start(gctx)
	})
	if srv != nil {
		g.Go(func() error {
			return srv.Start(addr)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
