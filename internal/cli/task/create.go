package task

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/thenoetrevino/livekanban/internal/cli"
	"github.com/thenoetrevino/livekanban/internal/database"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// CreateCmd returns the task create subcommand
func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Long: `Create a task. Connected boards are told about the new task.

Examples:
  livekanban task create --project <id> --name "Write docs"
  livekanban task create --project <id> --name "Fix login" --priority high --due 2025-03-14 --quiet
`,
		Args: cobra.NoArgs,
		RunE: runCreate,
	}

	cmd.Flags().String("project", "", "Project ID (required)")
	requireFlag(cmd, "project")
	cmd.Flags().String("name", "", "Task name (required)")
	requireFlag(cmd, "name")
	cmd.Flags().String("description", "", "Task description")
	cmd.Flags().String("priority", "", "Priority: low, medium, high, critical")
	cmd.Flags().String("assignee", "", "Assignee name")
	cmd.Flags().String("due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().String("column", string(models.DefaultColumn()), "Column name")

	cmd.Flags().Bool("json", false, "Output in JSON format")
	cmd.Flags().Bool("quiet", false, "Minimal output (ID only)")

	return cmd
}

func runCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	formatter := cli.NewFormatter(cmd)

	in, err := inputFromFlags(cmd)
	if err != nil {
		return formatter.Fail("INVALID_INPUT", err)
	}

	c, err := cli.GetCLIFromContext(ctx)
	if err != nil {
		return formatter.Fail("INITIALIZATION_ERROR", err)
	}
	defer c.CloseLogged()

	task, err := c.App.Store.CreateTask(ctx, in)
	if err != nil {
		return formatter.Fail("TASK_CREATE_ERROR", err)
	}

	return formatter.Success(task, func(w io.Writer) {
		fmt.Fprintf(w, "Created task %q (%s) in %s\n", task.Name, task.ID, task.ColumnName())
	})
}

func inputFromFlags(cmd *cobra.Command) (database.TaskInput, error) {
	flags := cmd.Flags()
	projectID, _ := flags.GetString("project")
	name, _ := flags.GetString("name")
	description, _ := flags.GetString("description")
	priority, _ := flags.GetString("priority")
	assignee, _ := flags.GetString("assignee")
	due, _ := flags.GetString("due")
	column, _ := flags.GetString("column")

	in := database.TaskInput{
		ProjectID:    projectID,
		Name:         name,
		Description:  description,
		AssigneeName: assignee,
	}

	if priority != "" {
		p, ok := parsePriority(priority)
		if !ok {
			return in, validation("invalid priority %q (must be: low, medium, high, critical)", priority)
		}
		in.Priority = p
	}

	if due != "" {
		d, err := time.ParseInLocation("2006-01-02", due, time.Local)
		if err != nil {
			return in, validation("invalid due date %q (must be YYYY-MM-DD)", due)
		}
		in.DueDate = &d
	}

	col, ok := resolveColumn(column)
	if !ok {
		return in, validation("unknown column %q", column)
	}
	in.Column = col
	return in, nil
}
