package models

import (
	"strings"
	"time"
)

// Task represents a single work item on the kanban board.
// ID is assigned by the server and never changes. Column is authoritative for
// placement; CreatedAt orders tasks within a column.
type Task struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Priority     Priority   `json:"priority,omitempty"`
	Status       string     `json:"status,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	AssigneeID   string     `json:"assignee_id,omitempty"`
	AssigneeName string     `json:"assignee_name,omitempty"`
	Column       string     `json:"column"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ColumnName resolves the task's column, falling back to the default column
// when the stored value is empty or not part of the enumeration.
func (t Task) ColumnName() ColumnName {
	if c, ok := ParseColumn(t.Column); ok {
		return c
	}
	return DefaultColumn()
}

// GetID returns the task id.
func (t Task) GetID() string { return t.ID }

// Matches reports whether the lower-cased term occurs in the task's name,
// description or assignee name.
func (t Task) Matches(term string) bool {
	term = strings.ToLower(term)
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Name), term) ||
		strings.Contains(strings.ToLower(t.Description), term) ||
		strings.Contains(strings.ToLower(t.AssigneeName), term)
}

// Priority is the urgency level shown on a card.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Rank orders priorities from 0 (unset) to 4 (critical).
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

// DueUrgency classifies how close a task is to its due date.
type DueUrgency string

const (
	DueNone    DueUrgency = "none"
	DueSoon    DueUrgency = "soon"
	DueToday   DueUrgency = "today"
	DueOverdue DueUrgency = "overdue"
)

// StatusDone is the status value that suppresses due-date urgency.
const StatusDone = "Done"

// Urgency classifies the due date relative to now. Tasks without a due date
// or already done are never urgent.
func (t Task) Urgency(now time.Time) DueUrgency {
	if t.DueDate == nil || t.Status == StatusDone {
		return DueNone
	}
	days := daysUntil(now, *t.DueDate)
	switch {
	case days < 0:
		return DueOverdue
	case days <= 1:
		return DueToday
	case days <= 3:
		return DueSoon
	default:
		return DueNone
	}
}

// FormattedDueDate renders the due date as "Jan 2", or "" when unset.
func (t Task) FormattedDueDate() string {
	if t.DueDate == nil {
		return ""
	}
	return t.DueDate.Format("Jan 2")
}

// daysUntil rounds the distance up to whole days.
func daysUntil(now, due time.Time) int {
	d := due.Sub(now)
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}
