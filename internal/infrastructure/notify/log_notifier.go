// Package notify holds notifiers that do not depend on an external messaging service.
package notify

import (
	"context"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"go.uber.org/zap"
)

// LogNotifier writes notifications to the log instead of delivering them
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the message with its recipient
func (n *LogNotifier) Notify(_ context.Context, email, message string) error {
	n.logger.Info("Notification",
		zap.String("email", email),
		zap.String("message", message))
	return nil
}

var _ port.Notifier = (*LogNotifier)(nil)
