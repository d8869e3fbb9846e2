package audit

import (
	"context"
	"log/slog"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Worker consumes audit events from a channel and persists them. A store
// failure is logged and the event dropped; engine runs never block on
// auditing.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"instance_id", event.InstanceID,
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}
