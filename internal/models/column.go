package models

// ColumnName identifies one of the fixed workflow stages of a board.
type ColumnName string

const (
	ColumnToDo       ColumnName = "To Do"
	ColumnInProgress ColumnName = "In Progress"
	ColumnInReview   ColumnName = "In Review"
	ColumnDone       ColumnName = "Done"
	ColumnBlocked    ColumnName = "Blocked"
)

// boardColumns is the display order of the board, left to right.
var boardColumns = []ColumnName{
	ColumnToDo,
	ColumnInProgress,
	ColumnInReview,
	ColumnDone,
	ColumnBlocked,
}

// Columns returns the ordered column enumeration.
// The returned slice is a copy and may be modified by the caller.
func Columns() []ColumnName {
	out := make([]ColumnName, len(boardColumns))
	copy(out, boardColumns)
	return out
}

// DefaultColumn is where tasks without a recognised column are placed.
func DefaultColumn() ColumnName {
	return boardColumns[0]
}

// ParseColumn reports whether s names one of the board columns.
func ParseColumn(s string) (ColumnName, bool) {
	for _, c := range boardColumns {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ColumnIndex returns the position of c on the board, or -1.
func ColumnIndex(c ColumnName) int {
	for i, col := range boardColumns {
		if col == c {
			return i
		}
	}
	return -1
}

// AcceptsNewTasks reports whether the column shows an "add task" action.
// Only the first column accepts new tasks directly.
func (c ColumnName) AcceptsNewTasks() bool {
	return c == ColumnToDo
}

func (c ColumnName) String() string {
	return string(c)
}
