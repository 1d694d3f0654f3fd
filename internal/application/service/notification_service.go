package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-approvals/internal/application/dispatcher"
	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/event"
)

// NotificationService turns domain events into messages for people
type NotificationService interface {
	// Register subscribes the service's handlers on d
	Register(d dispatcher.Dispatcher)

	NotifySubmitted(ctx context.Context, evt *event.Event) error
	NotifyDecision(ctx context.Context, evt *event.Event) error
	NotifyPasswordReset(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	expenseRepo port.ExpenseRepository
	userRepo    port.UserRepository
	notifier    port.Notifier
	logger      Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	expenseRepo port.ExpenseRepository,
	userRepo port.UserRepository,
	notifier port.Notifier,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		expenseRepo: expenseRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		logger:      orNop(logger),
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeExpenseSubmitted, "notify-manager", s.NotifySubmitted)
	d.SubscribeNamed(event.TypeExpenseApproved, "notify-submitter", s.NotifyDecision)
	d.SubscribeNamed(event.TypeExpenseRejected, "notify-submitter", s.NotifyDecision)
	d.SubscribeNamed(event.TypePasswordReset, "deliver-temp-password", s.NotifyPasswordReset)
}

// NotifySubmitted tells the submitter's manager about a pending expense.
// Auto-approved submissions are announced by the approval event instead.
func (s *notificationServiceImpl) NotifySubmitted(ctx context.Context, evt *event.Event) error {
	if evt.GetPayloadString(event.KeyNewStatus) != string(entity.StatusPending) {
		return nil
	}

	expense, submitter, err := s.loadSubject(ctx, evt)
	if err != nil || expense == nil || submitter == nil {
		return err
	}
	if submitter.ManagerID == nil {
		s.logger.Info("Submitter has no manager, skipping notification", "expense_id", expense.ID, "user_id", submitter.ID)
		return nil
	}

	manager, err := s.userRepo.GetByID(ctx, *submitter.ManagerID)
	if err != nil {
		return fmt.Errorf("get manager: %w", err)
	}
	if manager == nil {
		return nil
	}

	msg := fmt.Sprintf("%s submitted %s %.2f for %s (%s). It is waiting for your approval.",
		submitter.Name, expense.Currency, expense.Amount, describe(expense), expense.Category)
	return s.send(ctx, manager.Email, msg, "expense_id", expense.ID)
}

// NotifyDecision tells the submitter that their expense was approved or rejected
func (s *notificationServiceImpl) NotifyDecision(ctx context.Context, evt *event.Event) error {
	expense, submitter, err := s.loadSubject(ctx, evt)
	if err != nil || expense == nil || submitter == nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your expense %s (%s %.2f) was %s", describe(expense), expense.Currency, expense.Amount,
		evt.GetPayloadString(event.KeyNewStatus))
	if evt.GetPayloadBool(event.KeyAuto) {
		b.WriteString(" automatically")
	}
	b.WriteString(".")
	if comment := evt.GetPayloadString(event.KeyComment); comment != "" && !evt.GetPayloadBool(event.KeyAuto) {
		fmt.Fprintf(&b, " Comment: %s", comment)
	}

	return s.send(ctx, submitter.Email, b.String(), "expense_id", expense.ID)
}

// NotifyPasswordReset delivers a temporary password to its owner
func (s *notificationServiceImpl) NotifyPasswordReset(ctx context.Context, evt *event.Event) error {
	email := evt.GetPayloadString(event.KeyEmail)
	password := evt.GetPayloadString(event.KeyTempPassword)
	if email == "" || password == "" {
		return fmt.Errorf("password reset event %s is missing email or password", evt.ID)
	}

	// Recovery is unauthenticated, so only registered addresses receive anything
	users, err := s.userRepo.ListByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup recovery email: %w", err)
	}
	if len(users) == 0 {
		s.logger.Info("Password reset for unknown email skipped", "event_id", evt.ID)
		return nil
	}

	msg := fmt.Sprintf("Your temporary password is %s. Please change it after signing in.", password)
	return s.send(ctx, users[0].Email, msg, "event_id", evt.ID, "user_id", users[0].ID)
}

func (s *notificationServiceImpl) loadSubject(ctx context.Context, evt *event.Event) (*entity.Expense, *entity.User, error) {
	expense, err := s.expenseRepo.GetByID(ctx, evt.SubjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("get expense: %w", err)
	}
	if expense == nil {
		s.logger.Error("Expense for event not found", "event_id", evt.ID, "expense_id", evt.SubjectID)
		return nil, nil, nil
	}

	submitter, err := s.userRepo.GetByID(ctx, expense.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("get submitter: %w", err)
	}
	return expense, submitter, nil
}

func (s *notificationServiceImpl) send(ctx context.Context, email, msg string, keysAndValues ...interface{}) error {
	if err := s.notifier.Notify(ctx, email, msg); err != nil {
		s.logger.Error("Failed to send notification", append(keysAndValues, "email", email, "error", err)...)
		return fmt.Errorf("send notification: %w", err)
	}

	s.logger.Info("Notification sent", append(keysAndValues, "email", email, "message_length", len(msg))...)
	return nil
}

func describe(e *entity.Expense) string {
	if desc := strings.TrimSpace(e.Description); desc != "" {
		return fmt.Sprintf("%q", desc)
	}
	return e.ID
}
