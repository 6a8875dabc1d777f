package task

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thenoetrevino/livekanban/internal/models"
)

// TaskCmd returns the task parent command
func TaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(CreateCmd())
	cmd.AddCommand(ListCmd())
	cmd.AddCommand(MoveCmd())

	return cmd
}

func requireFlag(cmd *cobra.Command, name string) {
	if err := cmd.MarkFlagRequired(name); err != nil {
		slog.Error("failed to mark flag as required", "flag", name, "error", err)
	}
}

// resolveColumn matches a column name case-insensitively.
func resolveColumn(s string) (models.ColumnName, bool) {
	for _, c := range models.Columns() {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, true
		}
	}
	return "", false
}

func parsePriority(s string) (models.Priority, bool) {
	for _, p := range []models.Priority{
		models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical,
	} {
		if strings.EqualFold(s, string(p)) {
			return p, true
		}
	}
	return "", false
}

func validation(format string, args ...any) error {
	return &models.ValidationError{Op: "task", Err: fmt.Errorf(format, args...)}
}
