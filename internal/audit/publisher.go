package audit

import (
	"context"
	"log/slog"
)

// Publisher accepts audit events from the engines. Implementations decide
// delivery; engines treat publishing as fail-open so a full audit pipeline
// never stalls a scheduled run.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// ChannelPublisher queues events for the background Worker. When the buffer is
// full the event is dropped and logged rather than blocking an engine run.
type ChannelPublisher struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewChannelPublisher builds a publisher with a bounded buffer and the channel
// a Worker should drain.
func NewChannelPublisher(logger *slog.Logger, buffer int) (*ChannelPublisher, <-chan Event) {
	if buffer <= 0 {
		buffer = 1024
	}
	inbox := make(chan Event, buffer)
	return &ChannelPublisher{inbox: inbox, logger: logger}, inbox
}

// Emit enqueues the event without blocking.
func (p *ChannelPublisher) Emit(ctx context.Context, event Event) {
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"instance_id", event.InstanceID,
			"action", event.Action,
		)
	}
}

// NopPublisher discards all events. Used in tests that don't assert auditing.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) {}
