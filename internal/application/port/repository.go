package port

import (
	"context"
	"time"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// Lookups return (nil, nil) when the row does not exist.

// CompanyRepository defines persistence operations for Company
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id string) (*entity.Company, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// GetByEmail matches email case-insensitively within one company
	GetByEmail(ctx context.Context, companyID, email string) (*entity.User, error)
	// ListByEmail matches email case-insensitively across all companies
	ListByEmail(ctx context.Context, email string) ([]*entity.User, error)
	ListByCompany(ctx context.Context, companyID string) ([]*entity.User, error)
	// ListByManager returns direct reports only
	ListByManager(ctx context.Context, managerID string) ([]*entity.User, error)
}

// ExpenseFilter narrows an expense listing; empty fields do not filter
type ExpenseFilter struct {
	UserID string
	Status entity.ExpenseStatus
}

// StatusChange is a compare-and-set request on an expense status
type StatusChange struct {
	From      entity.ExpenseStatus
	To        entity.ExpenseStatus
	DecidedBy string
	DecidedAt time.Time
}

// ExpenseRepository defines persistence operations for Expense
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id string) (*entity.Expense, error)
	// List orders newest first; equal timestamps fall back to later insertion first
	List(ctx context.Context, companyID string, filter ExpenseFilter) ([]*entity.Expense, error)
	// ListPendingByUsers returns pending expenses of the given users in insertion order
	ListPendingByUsers(ctx context.Context, userIDs []string) ([]*entity.Expense, error)
	// UpdateStatus applies change only if the stored status still equals change.From.
	// It reports false when no row matched.
	UpdateStatus(ctx context.Context, id string, change StatusChange) (bool, error)
}

// HistoryRepository defines persistence operations for ApprovalHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ApprovalHistory) error
	// ListByExpense returns rows oldest first
	ListByExpense(ctx context.Context, expenseID string) ([]*entity.ApprovalHistory, error)
}

// WorkflowRuleRepository defines persistence operations for WorkflowRule.
// A company has at most one rule.
type WorkflowRuleRepository interface {
	GetByCompany(ctx context.Context, companyID string) (*entity.WorkflowRule, error)
	// Save inserts the rule or replaces the company's existing one
	Save(ctx context.Context, rule *entity.WorkflowRule) error
}

// TransactionManager handles storage transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
