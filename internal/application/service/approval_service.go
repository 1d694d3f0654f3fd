package service

import (
	"context"
	"fmt"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// UnknownEmployee is shown for queue items whose submitter cannot be resolved
const UnknownEmployee = "Unknown"

// QueueItem is a pending expense with its submitter's name
type QueueItem struct {
	*entity.Expense
	EmployeeName string `json:"employeeName"`
}

// ApprovalService answers manager-facing approval questions
type ApprovalService interface {
	// PendingQueue returns pending expenses of the manager's direct reports, oldest first
	PendingQueue(ctx context.Context, managerID string) ([]QueueItem, error)
}

type approvalServiceImpl struct {
	userRepo    port.UserRepository
	expenseRepo port.ExpenseRepository
	logger      Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	userRepo port.UserRepository,
	expenseRepo port.ExpenseRepository,
	logger Logger,
) ApprovalService {
	return &approvalServiceImpl{
		userRepo:    userRepo,
		expenseRepo: expenseRepo,
		logger:      orNop(logger),
	}
}

func (s *approvalServiceImpl) PendingQueue(ctx context.Context, managerID string) ([]QueueItem, error) {
	if managerID == "" {
		return []QueueItem{}, nil
	}

	reports, err := s.userRepo.ListByManager(ctx, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list direct reports: %w", err)
	}

	names := make(map[string]string, len(reports))
	ids := make([]string, 0, len(reports))
	for _, u := range reports {
		names[u.ID] = u.Name
		ids = append(ids, u.ID)
	}

	expenses, err := s.expenseRepo.ListPendingByUsers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending expenses: %w", err)
	}

	items := make([]QueueItem, 0, len(expenses))
	for _, e := range expenses {
		name := names[e.UserID]
		if name == "" {
			name = UnknownEmployee
		}
		items = append(items, QueueItem{Expense: e, EmployeeName: name})
	}

	return items, nil
}
