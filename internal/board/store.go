// Package board holds the in-memory board: the unfiltered task cache and the
// per-column ordering derived from it. The store is a plain state container;
// it never performs I/O and is only touched from the event loop.
package board

import (
	"fmt"
	"slices"

	"github.com/thenoetrevino/livekanban/internal/models"
)

// Predicate restricts a view to matching tasks. A nil predicate matches all.
type Predicate func(models.Task) bool

// Annotator reports transient per-task state shown on cards.
type Annotator interface {
	IsMarked(taskID string) bool
}

// Card is a task as presented in a column view.
type Card struct {
	models.Task
	BeingEdited bool
}

// Column is one column of a view.
type Column struct {
	Name  models.ColumnName
	Tasks []Card
	Count int
}

// IDs returns the task identifiers of the column in display order.
func (c Column) IDs() []string {
	ids := make([]string, len(c.Tasks))
	for i, card := range c.Tasks {
		ids[i] = card.ID
	}
	return ids
}

// entry is a cached task plus its load order, used to break CreatedAt ties.
type entry struct {
	task models.Task
	seq  int
}

// Store owns the unfiltered task cache for one board.
type Store struct {
	columns  []models.ColumnName
	tasks    map[string]*entry
	byColumn map[models.ColumnName][]string
	nextSeq  int
	marks    Annotator
}

// NewStore creates an empty store in the selector state.
func NewStore() *Store {
	s := &Store{columns: models.Columns()}
	s.Reset()
	return s
}

// SetAnnotator installs the source of the BeingEdited flag.
func (s *Store) SetAnnotator(a Annotator) {
	s.marks = a
}

// Reset drops every task.
func (s *Store) Reset() {
	s.tasks = make(map[string]*entry)
	s.byColumn = make(map[models.ColumnName][]string, len(s.columns))
	s.nextSeq = 0
}

// Load replaces the cache with tasks and rebuilds every column from scratch.
// Tasks without a recognised column land in the first column. When the same
// identifier appears more than once the later record wins.
func (s *Store) Load(tasks []models.Task) {
	s.Reset()
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		if prev, ok := s.tasks[t.ID]; ok {
			prev.task = t
			continue
		}
		s.tasks[t.ID] = &entry{task: t, seq: s.nextSeq}
		s.nextSeq++
	}

	for id, e := range s.tasks {
		col := e.task.ColumnName()
		s.byColumn[col] = append(s.byColumn[col], id)
	}
	for col := range s.byColumn {
		s.sortColumn(col)
	}
}

// ApplyLocalMove relocates a task to target. CreatedAt is left alone so the
// task lands at the position its creation time dictates.
func (s *Store) ApplyLocalMove(taskID string, target models.ColumnName) error {
	if models.ColumnIndex(target) < 0 {
		return fmt.Errorf("move task %s: %w: %q", taskID, models.ErrUnknownColumn, target)
	}
	e, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("move task %s: %w", taskID, models.ErrTaskNotFound)
	}

	source := e.task.ColumnName()
	e.task.Column = string(target)
	if source == target {
		return nil
	}

	s.byColumn[source] = slices.DeleteFunc(s.byColumn[source], func(id string) bool {
		return id == taskID
	})
	s.insertSorted(target, taskID)
	return nil
}

// Task returns the cached task with the given identifier.
func (s *Store) Task(taskID string) (models.Task, bool) {
	e, ok := s.tasks[taskID]
	if !ok {
		return models.Task{}, false
	}
	return e.task, true
}

// Tasks returns a copy of the unfiltered cache in board order.
func (s *Store) Tasks() []models.Task {
	out := make([]models.Task, 0, len(s.tasks))
	for _, col := range s.columns {
		for _, id := range s.byColumn[col] {
			out = append(out, s.tasks[id].task)
		}
	}
	return out
}

// Len returns the number of cached tasks.
func (s *Store) Len() int {
	return len(s.tasks)
}

// View returns every column in board order restricted to tasks accepted by
// pred. The cache is not modified.
func (s *Store) View(pred Predicate) []Column {
	view := make([]Column, 0, len(s.columns))
	for _, name := range s.columns {
		col := Column{Name: name, Tasks: []Card{}}
		for _, id := range s.byColumn[name] {
			t := s.tasks[id].task
			if pred != nil && !pred(t) {
				continue
			}
			card := Card{Task: t}
			if s.marks != nil {
				card.BeingEdited = s.marks.IsMarked(id)
			}
			col.Tasks = append(col.Tasks, card)
		}
		col.Count = len(col.Tasks)
		view = append(view, col)
	}
	return view
}

func (s *Store) less(a, b string) int {
	ea, eb := s.tasks[a], s.tasks[b]
	if c := ea.task.CreatedAt.Compare(eb.task.CreatedAt); c != 0 {
		return c
	}
	return ea.seq - eb.seq
}

func (s *Store) sortColumn(col models.ColumnName) {
	slices.SortStableFunc(s.byColumn[col], s.less)
}

func (s *Store) insertSorted(col models.ColumnName, taskID string) {
	ids := s.byColumn[col]
	i, _ := slices.BinarySearchFunc(ids, taskID, s.less)
	s.byColumn[col] = slices.Insert(ids, i, taskID)
}
