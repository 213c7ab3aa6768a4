package events

import (
	"context"
	"log/slog"
	"time"
)

// retryBaseDelay is the first backoff step; each further attempt doubles it
const retryBaseDelay = 50 * time.Millisecond

// PublishWithRetry sends event, retrying with exponential backoff while the
// hub rejects it. It makes at most attempts sends and gives up early when
// ctx ends. A nil client is a no-op.
func PublishWithRetry(ctx context.Context, client EventPublisher, event Event, attempts int) error {
	if client == nil {
		return nil
	}

	var lastErr error
	for attempt := range attempts {
		if lastErr = client.SendEvent(event); lastErr == nil {
			if attempt > 0 {
				slog.Debug("event published after retry",
					"attempt", attempt+1,
					"event_type", event.Type,
					"user_id", event.UserID)
			}
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		delay := retryBaseDelay << attempt
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}
