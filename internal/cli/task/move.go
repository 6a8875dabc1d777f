package task

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thenoetrevino/livekanban/internal/cli"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// MoveCmd returns the task move subcommand
func MoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <column|next|prev>",
		Short: "Move a task to another column",
		Long: `Move a task to another column by direction or column name.
Connected boards show the move as a change made by another user.

Examples:
  # Move to next column
  livekanban task move --id <id> next

  # Move to specific column by name (case-insensitive)
  livekanban task move --id <id> "in review"
`,
		Args: cobra.ExactArgs(1),
		RunE: runMove,
	}

	cmd.Flags().String("id", "", "Task ID (required)")
	requireFlag(cmd, "id")
	cmd.Flags().String("project", "", "Project ID, needed for next and prev with the http backend")
	cmd.Flags().Bool("json", false, "Output in JSON format")
	cmd.Flags().Bool("quiet", false, "Minimal output (ID only)")

	return cmd
}

type moveResult struct {
	ID     string            `json:"id"`
	Column models.ColumnName `json:"column"`
}

func (r moveResult) GetID() string { return r.ID }

func runMove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	formatter := cli.NewFormatter(cmd)
	taskID, _ := cmd.Flags().GetString("id")
	target := args[0]

	c, err := cli.GetCLIFromContext(ctx)
	if err != nil {
		return formatter.Fail("INITIALIZATION_ERROR", err)
	}
	defer c.CloseLogged()

	var column models.ColumnName
	switch dir := strings.ToLower(target); dir {
	case "next", "prev":
		current, err := currentColumn(cmd, c, taskID)
		if err != nil {
			return formatter.Fail("TASK_NOT_FOUND", err)
		}
		column, err = step(current, dir == "next")
		if err != nil {
			return formatter.Fail("NO_ADJACENT_COLUMN", err)
		}
	default:
		col, ok := resolveColumn(target)
		if !ok {
			return formatter.Fail("INVALID_COLUMN", validation("unknown column %q", target))
		}
		column = col
	}

	if err := c.App.Store.PersistColumnChange(ctx, taskID, column); err != nil {
		return formatter.Fail("TASK_MOVE_ERROR", err)
	}

	res := moveResult{ID: taskID, Column: column}
	return formatter.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "Moved task %s to %s\n", taskID, column)
	})
}

// currentColumn finds the column of taskID. The sqlite store can look the
// task up directly; over http the project's board is searched.
func currentColumn(cmd *cobra.Command, c *cli.CLI, taskID string) (models.ColumnName, error) {
	ctx := cmd.Context()
	if c.App.Repo != nil {
		t, err := c.App.Repo.TaskRepo.GetByID(ctx, taskID)
		if err != nil {
			return "", err
		}
		return t.ColumnName(), nil
	}

	projectID, _ := cmd.Flags().GetString("project")
	if projectID == "" {
		return "", fmt.Errorf("%w: --project is required to move by direction", cli.ErrUsage)
	}
	tasks, err := c.App.Store.FetchTasks(ctx, projectID)
	if err != nil {
		return "", err
	}
	for _, t := range tasks {
		if t.ID == taskID {
			return t.ColumnName(), nil
		}
	}
	return "", fmt.Errorf("task %s: %w", taskID, models.ErrTaskNotFound)
}

func step(current models.ColumnName, forward bool) (models.ColumnName, error) {
	cols := models.Columns()
	i := models.ColumnIndex(current)
	if forward {
		i++
	} else {
		i--
	}
	if i < 0 || i >= len(cols) {
		return "", validation("task is already in the %s column (%s)", map[bool]string{true: "last", false: "first"}[forward], current)
	}
	return cols[i], nil
}
