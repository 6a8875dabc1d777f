package engine

import (
	"github.com/thenoetrevino/livekanban/internal/board"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// Message is a notification from the engine to its host. The host receives
// them in order from Engine.Messages.
type Message interface {
	engineMessage()
}

// Board is the rendered state of the board at the time a message was sent.
type Board struct {
	ProjectID string
	Columns   []board.Column
	Term      string
	Err       error // current FetchError, if the last load failed
	InFlight  int   // moves waiting for the server
}

// Selector reports whether no project is selected.
func (b Board) Selector() bool {
	return b.ProjectID == ""
}

// TaskCount returns the number of visible tasks.
func (b Board) TaskCount() int {
	n := 0
	for _, c := range b.Columns {
		n += c.Count
	}
	return n
}

// LoadingMsg toggles the loading indicator.
type LoadingMsg struct {
	Loading bool
}

// ProjectsLoadedMsg carries the project list for the selector.
type ProjectsLoadedMsg struct {
	Projects []models.ProjectSummary
}

// ProjectsErrorMsg reports a failed project list fetch. The selector stays
// up so the user can retry.
type ProjectsErrorMsg struct {
	Err *models.FetchError
}

// BoardReloadedMsg follows every successful load of the current project.
type BoardReloadedMsg struct {
	Board Board
}

// BoardErrorMsg reports a failed load. The board shows no tasks.
type BoardErrorMsg struct {
	Err   *models.FetchError
	Board Board
}

// TaskMovedMsg follows an optimistic local move.
type TaskMovedMsg struct {
	TaskID string
	From   models.ColumnName
	To     models.ColumnName
	Board  Board
}

// MoveSucceededMsg reports that the server accepted the latest move of a task.
type MoveSucceededMsg struct {
	TaskID string
	Column models.ColumnName
}

// MoveFailedMsg reports that the server rejected the latest move of a task.
type MoveFailedMsg struct {
	Err *models.PersistError
}

// AdvisoryMsg shows or hides the notice that someone else changed the board.
type AdvisoryMsg struct {
	Visible bool
	Text    string
}

// PresenceChangedMsg reports a task gaining or losing its editing mark.
type PresenceChangedMsg struct {
	TaskID  string
	Editing bool
	Board   Board
}

// SearchAppliedMsg follows a debounced search execution.
type SearchAppliedMsg struct {
	Term  string
	Board Board
}

// TaskSaveRequestedMsg asks the host to open its task form. An empty TaskID
// means a new task.
type TaskSaveRequestedMsg struct {
	TaskID        string
	DefaultColumn models.ColumnName
}

// TaskSaveCompletedMsg follows a successful save reported by the host.
type TaskSaveCompletedMsg struct {
	Message string
}

// TaskSaveFailedMsg follows a failed save reported by the host.
type TaskSaveFailedMsg struct {
	Message string
}

func (LoadingMsg) engineMessage()           {}
func (ProjectsLoadedMsg) engineMessage()    {}
func (ProjectsErrorMsg) engineMessage()     {}
func (BoardReloadedMsg) engineMessage()     {}
func (BoardErrorMsg) engineMessage()        {}
func (TaskMovedMsg) engineMessage()         {}
func (MoveSucceededMsg) engineMessage()     {}
func (MoveFailedMsg) engineMessage()        {}
func (AdvisoryMsg) engineMessage()          {}
func (PresenceChangedMsg) engineMessage()   {}
func (SearchAppliedMsg) engineMessage()     {}
func (TaskSaveRequestedMsg) engineMessage() {}
func (TaskSaveCompletedMsg) engineMessage() {}
func (TaskSaveFailedMsg) engineMessage()    {}
