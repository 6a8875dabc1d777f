package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thenoetrevino/livekanban/internal/cli"
	"github.com/thenoetrevino/livekanban/internal/database"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a demo project with sample tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := cli.ConfigFromContext(ctx)
			if err != nil {
				return err
			}

			db, err := database.Open(ctx, cfg.Backend.DBPath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer func() { _ = db.Close() }()

			id, err := database.Seed(ctx, database.NewRepository(db))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded project %s\nOpen it with: livekanban --project %s\n", id, id)
			return nil
		},
	}
}
