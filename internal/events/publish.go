package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/thenoetrevino/livekanban/internal/models"
)

// PublishWithRetry attempts to publish an event with retry logic.
// It makes up to maxRetries attempts with exponential backoff and returns the
// error from the final attempt. A nil publisher is a no-op so stores can run
// without a hub.
func PublishWithRetry(ctx context.Context, pub Publisher, channel string, event models.RemoteEvent, maxRetries int) error {
	if pub == nil {
		return nil
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	baseDelay := 50 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := pub.Publish(ctx, channel, event)
		if err == nil {
			if attempt > 0 {
				slog.Debug("event published after retry",
					"attempt", attempt+1,
					"action_type", event.ActionType,
					"task_id", event.TaskID)
			}
			return nil
		}

		lastErr = err

		if attempt < maxRetries-1 {
			// 50ms, 100ms, 200ms
			delay := baseDelay * (1 << attempt)
			slog.Debug("event publish failed, retrying",
				"attempt", attempt+1,
				"max_retries", maxRetries,
				"retry_delay", delay,
				"error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	slog.Warn("event publish failed after all retries",
		"attempts", maxRetries,
		"action_type", event.ActionType,
		"task_id", event.TaskID,
		"error", lastErr)

	return lastErr
}
