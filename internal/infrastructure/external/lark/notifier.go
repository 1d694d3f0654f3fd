package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/garyjia/expense-approvals/internal/application/port"
	"go.uber.org/zap"
)

// MessageSender is the part of SDKClient the notifier needs
type MessageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Notifier delivers text messages through Lark IM, addressing users by email
type Notifier struct {
	sender   MessageSender
	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

// NotifierOption configures a Notifier
type NotifierOption func(*Notifier)

// WithRetry sets the number of delivery attempts and the base delay between them
func WithRetry(attempts uint, delay time.Duration) NotifierOption {
	return func(n *Notifier) {
		n.attempts = attempts
		n.delay = delay
	}
}

// NewNotifier creates a Lark notifier
func NewNotifier(sender MessageSender, logger *zap.Logger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		sender:   sender,
		attempts: 3,
		delay:    500 * time.Millisecond,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends message as a text message to the Lark user registered with email
func (n *Notifier) Notify(ctx context.Context, email, message string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if message == "" {
		return fmt.Errorf("message cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	var messageID string
	err = retry.Do(
		func() error {
			id, err := n.sender.SendMessage(ctx, ReceiveIDTypeEmail, email, "text", string(content))
			if err != nil {
				return err
			}
			messageID = id
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(n.attempts),
		retry.Delay(n.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Rejections by the API (unknown user, missing scope) do not heal on retry
			var apiErr *APIError
			return !errors.As(err, &apiErr)
		}),
		retry.OnRetry(func(attempt uint, err error) {
			n.logger.Warn("Retrying Lark message", zap.Uint("attempt", attempt+1), zap.Error(err))
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to notify %s via lark: %w", email, err)
	}

	n.logger.Info("Lark message sent", zap.String("message_id", messageID), zap.String("email", email))
	return nil
}

var _ port.Notifier = (*Notifier)(nil)
