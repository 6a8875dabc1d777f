package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thenoetrevino/livekanban/internal/events"
	"github.com/thenoetrevino/livekanban/internal/models"
)

// publishRetries bounds how often a change notification is retried.
const publishRetries = 3

// withTx executes a function within a database transaction.
// It automatically handles begin, rollback on error, and commit on success.
func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// notifier publishes change notifications after successful writes.
// Errors are logged but not returned (fire-and-forget pattern).
type notifier struct {
	pub     events.Publisher
	channel string
	logger  *slog.Logger
}

func (n *notifier) send(ctx context.Context, ev models.RemoteEvent) {
	if n == nil || n.pub == nil {
		return
	}
	if err := events.PublishWithRetry(ctx, n.pub, n.channel, ev, publishRetries); err != nil {
		n.logger.Warn("failed to publish change",
			"action_type", ev.ActionType,
			"task_id", ev.TaskID,
			"project_id", ev.ProjectID,
			"error", err)
	}
}

// nullTime converts an optional time to its column value.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullTimeToPtr converts sql.NullTime to *time.Time.
// Returns nil if the value is not valid.
func nullTimeToPtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}
