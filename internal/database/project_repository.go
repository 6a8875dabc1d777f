package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/thenoetrevino/livekanban/internal/models"
)

// ProjectRepo handles project persistence.
type ProjectRepo struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Create inserts a project. An empty status defaults to Planning.
func (r *ProjectRepo) Create(ctx context.Context, name string, status models.ProjectStatus) (*models.ProjectSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &models.ValidationError{Op: "create project", Err: ErrNameRequired}
	}
	if status == "" {
		status = models.ProjectPlanning
	}

	p := &models.ProjectSummary{ID: uuid.NewString(), Name: name, Status: status}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, status, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Status), r.clock.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// GetAll lists every project with its task count, ordered by name.
func (r *ProjectRepo) GetAll(ctx context.Context) ([]models.ProjectSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.status, COUNT(t.id)
		 FROM projects p
		 LEFT JOIN tasks t ON t.project_id = p.id
		 GROUP BY p.id
		 ORDER BY p.name, p.created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.ProjectSummary{}
	for rows.Next() {
		var p models.ProjectSummary
		var status string
		if err := rows.Scan(&p.ID, &p.Name, &status, &p.TaskCount); err != nil {
			return nil, err
		}
		p.Status = models.ProjectStatus(status)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetByID returns one project summary.
func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*models.ProjectSummary, error) {
	var p models.ProjectSummary
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT p.id, p.name, p.status,
		        (SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id)
		 FROM projects p WHERE p.id = ?`, id,
	).Scan(&p.ID, &p.Name, &status, &p.TaskCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	p.Status = models.ProjectStatus(status)
	return &p, nil
}

// exists reports whether a project row exists.
func (r *ProjectRepo) exists(ctx context.Context, q querier, id string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a project and, by cascade, its tasks.
func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrProjectNotFound)
	}
	return nil
}
