package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thenoetrevino/livekanban/internal/database"
	"github.com/thenoetrevino/livekanban/internal/models"
)

func newTestFormatter(jsonOut, quiet bool) (*OutputFormatter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &OutputFormatter{JSON: jsonOut, Quiet: quiet, Out: &out, Err: &errOut}, &out, &errOut
}

func TestSuccess_Human(t *testing.T) {
	f, out, _ := newTestFormatter(false, false)

	err := f.Success(models.Task{ID: "t1", Name: "Write docs"}, func(w io.Writer) {
		fmt.Fprintln(w, "Created task")
	})
	require.NoError(t, err)
	assert.Equal(t, "Created task\n", out.String())
}

func TestSuccess_Quiet(t *testing.T) {
	f, out, _ := newTestFormatter(false, true)

	require.NoError(t, f.Success(models.Task{ID: "t1"}, nil))
	assert.Equal(t, "t1\n", out.String())
}

func TestSuccess_QuietWithoutID(t *testing.T) {
	f, out, _ := newTestFormatter(false, true)

	require.NoError(t, f.Success([]string{"a"}, nil))
	assert.Empty(t, out.String())
}

func TestSuccess_JSON(t *testing.T) {
	f, out, _ := newTestFormatter(true, false)

	require.NoError(t, f.Success(models.ProjectSummary{ID: "p1", Name: "Website"}, nil))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, true, got["success"])
	data, ok := got["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p1", data["id"])
}

func TestError_JSON(t *testing.T) {
	f, out, errOut := newTestFormatter(true, false)

	require.NoError(t, f.ErrorWithSuggestion("TASK_NOT_FOUND", "task not found", "run task list"))

	var got struct {
		Success bool `json:"success"`
		Error   struct {
			Code       string `json:"code"`
			Message    string `json:"message"`
			Suggestion string `json:"suggestion"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.False(t, got.Success)
	assert.Equal(t, "TASK_NOT_FOUND", got.Error.Code)
	assert.Equal(t, "run task list", got.Error.Suggestion)
	assert.Empty(t, errOut.String())
}

func TestFail_HumanWritesStderr(t *testing.T) {
	f, out, errOut := newTestFormatter(false, false)
	cause := errors.New("boom")

	err := f.Fail("X", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Reported(err))
	assert.False(t, Reported(cause))
	assert.Empty(t, out.String())
	assert.Equal(t, "Error: boom\n", errOut.String())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"task not found", fmt.Errorf("get: %w", models.ErrTaskNotFound), ExitNotFound},
		{"project not found", database.ErrProjectNotFound, ExitNotFound},
		{"usage", fmt.Errorf("%w: bad flags", ErrUsage), ExitUsage},
		{"validation", &models.ValidationError{Op: "task", Err: models.ErrUnknownColumn}, ExitValidation},
		{"name required", database.ErrNameRequired, ExitValidation},
		{"other", errors.New("disk full"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
