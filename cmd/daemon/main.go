package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/thenoetrevino/livekanban/internal/config"
	"github.com/thenoetrevino/livekanban/internal/daemon"
)

func main() {
	// Set up signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer cancel()

	// HOME is set by systemd; DataDir falls back to the user's home
	dataDir := config.DataDir()
	socketPath := os.Getenv("LIVEKANBAN_SOCKET_PATH")
	if socketPath == "" {
		socketPath = filepath.Join(dataDir, "livekanban.sock")
	}

	// Ensure the socket directory exists with secure permissions
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o700); err != nil {
		slog.Error("failed to create socket directory", "error", err)
		os.Exit(1)
	}

	server, err := daemon.NewServer(socketPath, daemon.Options{})
	if err != nil {
		slog.Error("failed to create daemon", "error", err)
		os.Exit(1)
	}

	slog.Info("livekanban daemon starting", "socket_path", socketPath, "pid", os.Getpid())

	// Blocks until shutdown
	if err := server.Start(ctx); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}

	slog.Info("livekanban daemon shutting down gracefully")
}
