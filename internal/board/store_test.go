package board

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thenoetrevino/livekanban/internal/models"
)

var t0 = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func task(id, column string, createdOffset time.Duration) models.Task {
	return models.Task{ID: id, Name: "Task " + id, Column: column, CreatedAt: t0.Add(createdOffset)}
}

func columnIDs(t *testing.T, view []Column, name models.ColumnName) []string {
	t.Helper()
	for _, c := range view {
		if c.Name == name {
			return c.IDs()
		}
	}
	t.Fatalf("column %q not in view", name)
	return nil
}

type fakeMarks map[string]bool

func (f fakeMarks) IsMarked(id string) bool { return f[id] }

// ============================================================================
// Load Tests
// ============================================================================

func TestLoad_PartitionsAndSorts(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{
		task("3", "To Do", 3*time.Minute),
		task("1", "To Do", 1*time.Minute),
		task("2", "Done", 2*time.Minute),
		task("4", "In Review", 0),
	})

	view := s.View(nil)
	require.Len(t, view, 5)

	assert.Equal(t, []string{"1", "3"}, columnIDs(t, view, models.ColumnToDo))
	assert.Equal(t, []string{"2"}, columnIDs(t, view, models.ColumnDone))
	assert.Equal(t, []string{"4"}, columnIDs(t, view, models.ColumnInReview))
	assert.Empty(t, columnIDs(t, view, models.ColumnBlocked))
	assert.Equal(t, 2, view[0].Count)
}

func TestLoad_DefaultsUnknownColumnToFirst(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{
		task("a", "", 0),
		task("b", "Someday", time.Minute),
	})

	assert.Equal(t, []string{"a", "b"}, columnIDs(t, s.View(nil), models.ColumnToDo))
}

func TestLoad_TiesKeepLoadOrder(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{
		task("z", "To Do", 0),
		task("y", "To Do", 0),
		task("x", "To Do", 0),
	})

	assert.Equal(t, []string{"z", "y", "x"}, columnIDs(t, s.View(nil), models.ColumnToDo))
}

func TestLoad_DuplicateIDLaterRecordWins(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{
		task("1", "To Do", 0),
		task("1", "Done", 0),
	})

	assert.Equal(t, 1, s.Len())
	assert.Empty(t, columnIDs(t, s.View(nil), models.ColumnToDo))
	assert.Equal(t, []string{"1"}, columnIDs(t, s.View(nil), models.ColumnDone))
}

func TestLoad_ReplacesPreviousCache(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{task("old", "To Do", 0)})
	s.Load([]models.Task{task("new", "Done", 0)})

	_, ok := s.Task("old")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

// TestLoad_ExactlyOnce checks that for arbitrary task sets the union of the
// column views equals the loaded identifiers, each exactly once.
func TestLoad_ExactlyOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	columns := []string{"To Do", "In Progress", "In Review", "Done", "Blocked", "", "Bogus"}

	for round := 0; round < 50; round++ {
		n := rng.Intn(40)
		tasks := make([]models.Task, n)
		want := make([]string, n)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("r%d-t%d", round, i)
			tasks[i] = task(id, columns[rng.Intn(len(columns))], time.Duration(rng.Intn(10))*time.Minute)
			want[i] = id
		}

		s := NewStore()
		s.Load(tasks)

		var got []string
		for _, col := range s.View(nil) {
			got = append(got, col.IDs()...)
		}
		sort.Strings(got)
		sort.Strings(want)
		if n == 0 {
			assert.Empty(t, got)
			continue
		}
		require.Equal(t, want, got, "round %d", round)
	}
}

// ============================================================================
// ApplyLocalMove Tests
// ============================================================================

func TestApplyLocalMove_Scenario(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{
		task("1", "To Do", 0),
		task("2", "To Do", time.Minute),
	})
	assert.Equal(t, []string{"1", "2"}, columnIDs(t, s.View(nil), models.ColumnToDo))

	require.NoError(t, s.ApplyLocalMove("1", models.ColumnInProgress))

	view := s.View(nil)
	assert.Equal(t, []string{"2"}, columnIDs(t, view, models.ColumnToDo))
	assert.Equal(t, []string{"1"}, columnIDs(t, view, models.ColumnInProgress))
}

func TestApplyLocalMove_VisibleImmediately(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{task("t", "To Do", 0)})

	require.NoError(t, s.ApplyLocalMove("t", models.ColumnDone))

	assert.Equal(t, []string{"t"}, columnIDs(t, s.View(nil), models.ColumnDone))
	moved, ok := s.Task("t")
	require.True(t, ok)
	assert.Equal(t, "Done", moved.Column)
}

func TestApplyLocalMove_KeepsChronologicalPosition(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{
		task("early", "Done", 0),
		task("late", "Done", 10*time.Minute),
		task("middle", "To Do", 5*time.Minute),
	})

	require.NoError(t, s.ApplyLocalMove("middle", models.ColumnDone))

	assert.Equal(t, []string{"early", "middle", "late"}, columnIDs(t, s.View(nil), models.ColumnDone))
	moved, _ := s.Task("middle")
	assert.Equal(t, t0.Add(5*time.Minute), moved.CreatedAt, "CreatedAt must not change")
}

func TestApplyLocalMove_Errors(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{task("t", "To Do", 0)})

	assert.ErrorIs(t, s.ApplyLocalMove("missing", models.ColumnDone), models.ErrTaskNotFound)
	assert.ErrorIs(t, s.ApplyLocalMove("t", "Archive"), models.ErrUnknownColumn)
	assert.Equal(t, []string{"t"}, columnIDs(t, s.View(nil), models.ColumnToDo))
}

func TestApplyLocalMove_FromDefaultedColumn(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{task("t", "", 0)})

	require.NoError(t, s.ApplyLocalMove("t", models.ColumnBlocked))

	view := s.View(nil)
	assert.Empty(t, columnIDs(t, view, models.ColumnToDo))
	assert.Equal(t, []string{"t"}, columnIDs(t, view, models.ColumnBlocked))
}

// ============================================================================
// View Tests
// ============================================================================

func TestView_FilterDoesNotMutateCache(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{
		{ID: "1", Name: "Write docs", Column: "To Do", CreatedAt: t0},
		{ID: "2", Name: "Fix bug", Column: "To Do", CreatedAt: t0.Add(time.Minute)},
	})
	before := s.View(nil)

	filtered := s.View(func(t models.Task) bool { return t.Matches("docs") })
	assert.Equal(t, []string{"1"}, columnIDs(t, filtered, models.ColumnToDo))
	assert.Equal(t, 1, filtered[0].Count)

	assert.Equal(t, before, s.View(nil))
	assert.Equal(t, 2, s.Len())
}

func TestView_AnnotatesBeingEdited(t *testing.T) {
	s := NewStore()
	s.SetAnnotator(fakeMarks{"2": true})
	s.Load([]models.Task{task("1", "To Do", 0), task("2", "To Do", time.Minute)})

	cards := s.View(nil)[0].Tasks
	require.Len(t, cards, 2)
	assert.False(t, cards[0].BeingEdited)
	assert.True(t, cards[1].BeingEdited)
}

func TestReset_SelectorStateHasNoTasks(t *testing.T) {
	s := NewStore()
	s.Load([]models.Task{task("1", "To Do", 0)})
	s.Reset()

	assert.Equal(t, 0, s.Len())
	for _, col := range s.View(nil) {
		assert.Zero(t, col.Count)
	}
	assert.Empty(t, s.Tasks())
}
