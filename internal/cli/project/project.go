package project

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/thenoetrevino/livekanban/internal/cli"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// ProjectCmd returns the project parent command
func ProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(CreateCmd())
	cmd.AddCommand(ListCmd())

	return cmd
}

// ListCmd returns the project list subcommand
func ListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all projects",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	// Agent-friendly flags
	cmd.Flags().Bool("json", false, "Output in JSON format")
	cmd.Flags().Bool("quiet", false, "Minimal output (IDs only)")

	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	formatter := cli.NewFormatter(cmd)

	c, err := cli.GetCLIFromContext(ctx)
	if err != nil {
		return formatter.Fail("INITIALIZATION_ERROR", err)
	}
	defer c.CloseLogged()

	projects, err := c.App.Store.FetchProjects(ctx)
	if err != nil {
		return formatter.Fail("PROJECT_FETCH_ERROR", err)
	}

	if formatter.Quiet {
		for _, p := range projects {
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		}
		return nil
	}

	return formatter.Success(projects, func(w io.Writer) {
		if len(projects) == 0 {
			fmt.Fprintln(w, "No projects found")
			return
		}
		for _, p := range projects {
			fmt.Fprintf(w, "%s  %s [%s] %d tasks\n", p.ID, p.Name, p.Status, p.TaskCount)
		}
	})
}

// CreateCmd returns the project create subcommand
func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new project",
		Long: `Create a new project.

Examples:
  livekanban project create --name "Backend API"
  livekanban project create --name "Backend API" --status "In Progress" --quiet
`,
		Args: cobra.NoArgs,
		RunE: runCreate,
	}

	cmd.Flags().String("name", "", "Project name (required)")
	if err := cmd.MarkFlagRequired("name"); err != nil {
		slog.Error("failed to mark flag as required", "error", err)
	}
	cmd.Flags().String("status", string(models.ProjectPlanning), "Project status")

	cmd.Flags().Bool("json", false, "Output in JSON format")
	cmd.Flags().Bool("quiet", false, "Minimal output (ID only)")

	return cmd
}

func runCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	formatter := cli.NewFormatter(cmd)

	name, _ := cmd.Flags().GetString("name")
	status, _ := cmd.Flags().GetString("status")

	c, err := cli.GetCLIFromContext(ctx)
	if err != nil {
		return formatter.Fail("INITIALIZATION_ERROR", err)
	}
	defer c.CloseLogged()

	if c.App.Repo == nil {
		return formatter.Fail("UNSUPPORTED", fmt.Errorf("%w: projects can only be created with the sqlite backend", cli.ErrUsage))
	}

	p, err := c.App.Repo.ProjectRepo.Create(ctx, name, models.ProjectStatus(status))
	if err != nil {
		return formatter.Fail("PROJECT_CREATE_ERROR", err)
	}

	return formatter.Success(p, func(w io.Writer) {
		fmt.Fprintf(w, "Created project %q (%s)\n", p.Name, p.ID)
	})
}
