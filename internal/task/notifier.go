package task

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogNotifier is a Notifier that records notifications in the structured
// log. It stands in for the application's real notification service when
// none is wired in, and keeps terminal transitions observable either way.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(ctx context.Context, owner uuid.UUID, title, message, kind string, relatedID uuid.UUID) error {
	n.logger.Info("task notification",
		"owner_id", owner,
		"title", title,
		"message", message,
		"kind", kind,
		"related_id", relatedID)
	return nil
}
