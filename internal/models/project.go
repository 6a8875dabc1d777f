package models

// ProjectStatus is the lifecycle stage of a project.
type ProjectStatus string

const (
	ProjectPlanning   ProjectStatus = "Planning"
	ProjectInProgress ProjectStatus = "In Progress"
	ProjectOnHold     ProjectStatus = "On Hold"
	ProjectCompleted  ProjectStatus = "Completed"
)

// ProjectSummary is the lightweight project listing used by the project
// selector when no board is open.
type ProjectSummary struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    ProjectStatus `json:"status"`
	TaskCount int           `json:"task_count"`
}

// GetID returns the project id.
func (p ProjectSummary) GetID() string { return p.ID }
