package task

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thenoetrevino/livekanban/internal/cli"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// ListCmd returns the task list subcommand
func ListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks of a project, by column",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	cmd.Flags().String("project", "", "Project ID (required)")
	requireFlag(cmd, "project")
	cmd.Flags().Bool("json", false, "Output in JSON format")
	cmd.Flags().Bool("quiet", false, "Minimal output (IDs only)")

	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	formatter := cli.NewFormatter(cmd)
	projectID, _ := cmd.Flags().GetString("project")

	c, err := cli.GetCLIFromContext(ctx)
	if err != nil {
		return formatter.Fail("INITIALIZATION_ERROR", err)
	}
	defer c.CloseLogged()

	tasks, err := c.App.Store.FetchTasks(ctx, projectID)
	if err != nil {
		return formatter.Fail("TASK_FETCH_ERROR", err)
	}

	if formatter.Quiet {
		for _, t := range tasks {
			fmt.Fprintln(cmd.OutOrStdout(), t.ID)
		}
		return nil
	}

	return formatter.Success(tasks, func(w io.Writer) {
		if len(tasks) == 0 {
			fmt.Fprintln(w, "No tasks found")
			return
		}
		for _, col := range models.Columns() {
			var lines []string
			for _, t := range tasks {
				if t.ColumnName() == col {
					lines = append(lines, fmt.Sprintf("  %s  %s", t.ID, t.Name))
				}
			}
			if len(lines) == 0 {
				continue
			}
			fmt.Fprintf(w, "%s (%d)\n%s\n", col, len(lines), strings.Join(lines, "\n"))
		}
	})
}
