package workflow

import (
	"context"
	"errors"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/expense-approvals/internal/domain/workflow"
)

// ErrExpenseNotFound is returned when a transition names an unknown expense
var ErrExpenseNotFound = errors.New("expense not found")

// Decision is a manual approve or reject request
type Decision struct {
	ExpenseID string
	Status    entity.ExpenseStatus
	// ActorUserID defaults to the expense submitter when empty
	ActorUserID string
	Comment     string
}

// WorkflowEngine drives expenses through the approval state machine
type WorkflowEngine interface {
	// Submit stores a new expense with its submit history.
	// When autoApprove is set the expense is approved by the rule in the same transaction.
	Submit(ctx context.Context, expense *entity.Expense, autoApprove bool) error

	// Decide applies a manual decision. Deciding an expense that is no longer
	// pending fails with an error wrapping domainwf.ErrInvalidTransition.
	Decide(ctx context.Context, decision Decision) (*entity.Expense, error)

	// StateMachine returns a machine positioned at the expense's current status
	StateMachine(expense *entity.Expense) (domainwf.StateMachine, error)
}
