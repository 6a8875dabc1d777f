package models

// ActionType tags what a remote actor did.
// Values other than the named constants are treated as "something changed".
type ActionType string

const (
	ActionColumnChange ActionType = "COLUMN_CHANGE"
	ActionTaskUpdate   ActionType = "TASK_UPDATE"
)

// RemoteEvent is a change notification produced by another actor.
// Events are consumed in arrival order and never stored.
type RemoteEvent struct {
	ID         string     `json:"id"`
	ActionType ActionType `json:"action_type"`
	TaskID     string     `json:"task_id"`
	ActorID    string     `json:"actor_id"`
	ProjectID  string     `json:"project_id,omitempty"`
	Sequence   int64      `json:"sequence,omitempty"`
}

// IsColumnChange reports whether the event should be handled as a column
// change. Unrecognised action types fall back to this behaviour.
func (e RemoteEvent) IsColumnChange() bool {
	return e.ActionType != ActionTaskUpdate
}
