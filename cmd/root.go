package cmd

import (
	"github.com/spf13/cobra"

	"github.com/thenoetrevino/livekanban/internal/cli"
	"github.com/thenoetrevino/livekanban/internal/cli/project"
	"github.com/thenoetrevino/livekanban/internal/cli/task"
	"github.com/thenoetrevino/livekanban/internal/config"
	"github.com/thenoetrevino/livekanban/internal/launcher"
	"github.com/thenoetrevino/livekanban/internal/logging"
)

var rootCmd = NewRootCmd()

// NewRootCmd builds the livekanban command tree. Running it without a
// subcommand opens the board.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "livekanban",
		Short: "livekanban - a live terminal kanban board",
		Long: `livekanban is a terminal kanban board that stays in sync with every
other board open on the same project. Moves show up at once and are rolled
back if the server rejects them.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cli.ConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			level, _ := cmd.Flags().GetString("log-level")
			logPath, _ := cmd.Flags().GetString("log-file")
			return launcher.Launch(cfg, launcher.Options{
				LogPath:  logPath,
				LogLevel: logging.ParseLevel(level),
			})
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Config file (default ~/.config/livekanban/config.yaml)")
	flags.String("project", "", "Open this project instead of the project selector")
	flags.String("actor", "", "Actor id stamped on your changes")
	flags.String("transport", "", "Live update transport: socket, redis or none")
	flags.String("backend", "", "Task backend: sqlite or http")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	root.Flags().String("log-file", "", "Log file (default ~/.livekanban/logs/livekanban.log)")

	root.AddCommand(project.ProjectCmd())
	root.AddCommand(task.TaskCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(seedCmd())

	return root
}

// loadConfig reads the config file, applies flag overrides and stores the
// result on the command context.
func loadConfig(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"project", &cfg.ProjectID},
		{"actor", &cfg.ActorID},
		{"transport", &cfg.Transport.Kind},
		{"backend", &cfg.Backend.Kind},
	}
	for _, o := range overrides {
		if v, _ := flags.GetString(o.flag); v != "" {
			*o.dst = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cmd.SetContext(cli.WithConfig(cmd.Context(), cfg))
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
