package notify

import (
	"context"
	"log/slog"

	"obligo/internal/compliance/ports"
)

// LogNotifier writes notifications to the process log. Used when no Kafka
// brokers are configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLog constructs a log-backed notifier.
func NewLog(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(ctx context.Context, event ports.Notification) error {
	n.logger.InfoContext(ctx, "notification",
		"instance_id", event.InstanceID,
		"tenant_id", event.TenantID,
		"kind", event.Kind,
		"as_of", event.AsOf,
		"due_date", event.DueDate,
		"recipients", len(event.Recipients),
	)
	return nil
}
