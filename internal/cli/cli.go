// Package cli holds the shared plumbing of the non-interactive commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/thenoetrevino/livekanban/internal/app"
	"github.com/thenoetrevino/livekanban/internal/config"
)

// CLI represents the CLI application context
type CLI struct {
	App *app.App
}

// NewCLI wires the application for cfg. Live updates are never subscribed
// to, but local writes are still announced when a hub is reachable.
func NewCLI(ctx context.Context, cfg *config.Config) (*CLI, error) {
	application, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &CLI{App: application}, nil
}

// Close cleans up CLI resources
func (c *CLI) Close() error {
	return c.App.Close()
}

// CloseLogged closes the CLI, logging instead of returning the error.
func (c *CLI) CloseLogged() {
	if err := c.Close(); err != nil {
		slog.Error("failed to close CLI", "error", err)
	}
}

type configKey struct{}

// WithConfig stores cfg for subcommands.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFromContext returns the configuration stored by WithConfig.
func ConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// GetCLIFromContext builds a CLI from the configuration in ctx.
func GetCLIFromContext(ctx context.Context) (*CLI, error) {
	cfg, err := ConfigFromContext(ctx)
	if err != nil {
		return nil, err
	}
	c, err := NewCLI(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return c, nil
}
