package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thenoetrevino/livekanban/internal/models"
)

type seedTask struct {
	name     string
	desc     string
	column   models.ColumnName
	priority models.Priority
	dueIn    int // days from now, 0 for none
	assignee string
}

var demoTasks = []seedTask{
	{"Fix auth bug", "Session expires too early on mobile", models.ColumnToDo, models.PriorityHigh, 1, "Ana"},
	{"Refactor UI", "", models.ColumnToDo, models.PriorityMedium, 0, ""},
	{"Update deps", "Bump the charm libraries", models.ColumnToDo, models.PriorityLow, 10, "Sam"},
	{"Add tests", "Cover the column move flow", models.ColumnInProgress, models.PriorityMedium, 3, "Ana"},
	{"Review PR #42", "", models.ColumnInReview, models.PriorityHigh, 0, "Lee"},
	{"Write release notes", "", models.ColumnDone, models.PriorityLow, -2, "Sam"},
	{"Migrate CI runners", "Waiting on infra access", models.ColumnBlocked, models.PriorityCritical, -1, "Lee"},
}

// Seed creates a demo project with a few tasks in every column and returns
// its id.
func Seed(ctx context.Context, repo *Repository) (string, error) {
	project, err := repo.ProjectRepo.Create(ctx, "Demo Board", models.ProjectInProgress)
	if err != nil {
		return "", fmt.Errorf("seed project: %w", err)
	}

	now := repo.TaskRepo.clock.Now()
	for _, st := range demoTasks {
		in := TaskInput{
			ProjectID:    project.ID,
			Name:         st.name,
			Description:  st.desc,
			Priority:     st.priority,
			AssigneeName: st.assignee,
			Column:       st.column,
		}
		if st.dueIn != 0 {
			due := now.AddDate(0, 0, st.dueIn).Truncate(24 * time.Hour)
			in.DueDate = &due
		}
		if _, err := repo.CreateTask(ctx, in); err != nil {
			return "", fmt.Errorf("seed task %q: %w", st.name, err)
		}
		slog.Debug("seeded task", "name", st.name, "column", st.column)
	}

	return project.ID, nil
}
