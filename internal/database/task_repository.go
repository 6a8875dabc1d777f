package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/thenoetrevino/livekanban/internal/models"
)

// ============================================================================
// Task Operations
// ============================================================================

// TaskInput holds the editable fields of a task.
type TaskInput struct {
	ProjectID    string
	Name         string
	Description  string
	Priority     models.Priority
	Status       string
	DueDate      *time.Time
	AssigneeID   string
	AssigneeName string
	Column       models.ColumnName // empty means the default column
}

// TaskRepo handles task persistence. Successful writes are announced through
// the notifier.
type TaskRepo struct {
	db       *sql.DB
	clock    clockwork.Clock
	projects *ProjectRepo
	notify   *notifier
}

const taskColumns = `id, project_id, name, description, priority, status, due_date,
	assignee_id, assignee_name, column_name, created_at, updated_at`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (models.Task, error) {
	var t models.Task
	var priority string
	var due sql.NullTime
	err := s.Scan(
		&t.ID, &t.ProjectID, &t.Name, &t.Description, &priority, &t.Status, &due,
		&t.AssigneeID, &t.AssigneeName, &t.Column, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return models.Task{}, err
	}
	t.Priority = models.Priority(priority)
	t.DueDate = nullTimeToPtr(due)
	return t, nil
}

func validateInput(op string, in *TaskInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return &models.ValidationError{Op: op, Err: ErrNameRequired}
	}
	if in.Column == "" {
		in.Column = models.DefaultColumn()
	}
	if models.ColumnIndex(in.Column) < 0 {
		return &models.ValidationError{Op: op, Err: models.ErrUnknownColumn}
	}
	return nil
}

// Create inserts a task on behalf of actor and publishes a TASK_UPDATE.
func (r *TaskRepo) Create(ctx context.Context, actor string, in TaskInput) (*models.Task, error) {
	if err := validateInput("create task", &in); err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC()
	task := models.Task{
		ID:           uuid.NewString(),
		ProjectID:    in.ProjectID,
		Name:         in.Name,
		Description:  in.Description,
		Priority:     in.Priority,
		Status:       in.Status,
		DueDate:      in.DueDate,
		AssigneeID:   in.AssigneeID,
		AssigneeName: in.AssigneeName,
		Column:       string(in.Column),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		ok, err := r.projects.exists(ctx, tx, in.ProjectID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("project %s: %w", in.ProjectID, ErrProjectNotFound)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tasks (`+taskColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, task.ProjectID, task.Name, task.Description, string(task.Priority), task.Status,
			nullTime(task.DueDate), task.AssigneeID, task.AssigneeName, task.Column,
			task.CreatedAt, task.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	r.notify.send(ctx, models.RemoteEvent{
		ActionType: models.ActionTaskUpdate,
		TaskID:     task.ID,
		ActorID:    actor,
		ProjectID:  task.ProjectID,
	})
	return &task, nil
}

// Update replaces the editable fields of a task and publishes a TASK_UPDATE.
// The project of a task never changes.
func (r *TaskRepo) Update(ctx context.Context, actor, taskID string, in TaskInput) (*models.Task, error) {
	if err := validateInput("update task", &in); err != nil {
		return nil, err
	}

	var task models.Task
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks
			 SET name = ?, description = ?, priority = ?, status = ?, due_date = ?,
			     assignee_id = ?, assignee_name = ?, column_name = ?, updated_at = ?
			 WHERE id = ?`,
			in.Name, in.Description, string(in.Priority), in.Status, nullTime(in.DueDate),
			in.AssigneeID, in.AssigneeName, string(in.Column), r.clock.Now().UTC(), taskID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrTaskNotFound
		}
		task, err = r.get(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update task %s: %w", taskID, err)
	}

	r.notify.send(ctx, models.RemoteEvent{
		ActionType: models.ActionTaskUpdate,
		TaskID:     task.ID,
		ActorID:    actor,
		ProjectID:  task.ProjectID,
	})
	return &task, nil
}

// MoveToColumn changes the column of a task and publishes a COLUMN_CHANGE.
func (r *TaskRepo) MoveToColumn(ctx context.Context, actor, taskID string, column models.ColumnName) error {
	if models.ColumnIndex(column) < 0 {
		return &models.ValidationError{Op: "move task", Err: models.ErrUnknownColumn}
	}

	var projectID string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT project_id FROM tasks WHERE id = ?`, taskID).Scan(&projectID)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET column_name = ?, updated_at = ? WHERE id = ?`,
			string(column), r.clock.Now().UTC(), taskID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to move task %s: %w", taskID, err)
	}

	r.notify.send(ctx, models.RemoteEvent{
		ActionType: models.ActionColumnChange,
		TaskID:     taskID,
		ActorID:    actor,
		ProjectID:  projectID,
	})
	return nil
}

// Delete removes a task. Boards see it disappear on their next reload.
func (r *TaskRepo) Delete(ctx context.Context, actor, taskID string) error {
	var projectID string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT project_id FROM tasks WHERE id = ?`, taskID).Scan(&projectID)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}

	r.notify.send(ctx, models.RemoteEvent{
		ActionType: models.ActionTaskUpdate,
		TaskID:     taskID,
		ActorID:    actor,
		ProjectID:  projectID,
	})
	return nil
}

// GetByID returns one task.
func (r *TaskRepo) GetByID(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := r.get(ctx, r.db, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}
	return &task, nil
}

func (r *TaskRepo) get(ctx context.Context, q querier, taskID string) (models.Task, error) {
	task, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, models.ErrTaskNotFound
	}
	return task, err
}

// GetByProject returns every task of a project ordered by creation time.
func (r *TaskRepo) GetByProject(ctx context.Context, projectID string) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks
		 WHERE project_id = ?
		 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for project %s: %w", projectID, err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
