package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/application/workflow"
	"github.com/garyjia/expense-approvals/internal/domain/currency"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	domainwf "github.com/garyjia/expense-approvals/internal/domain/workflow"
)

// CreateExpenseInput is a new expense submission
type CreateExpenseInput struct {
	CompanyID   string
	UserID      string
	Description string
	Category    string
	Amount      float64
	Currency    string
	Vendor      string
	ExpenseDate string
	ReceiptName string
}

// TransitionInput is a manual decision on an expense
type TransitionInput struct {
	ExpenseID   string
	Status      entity.ExpenseStatus
	ActorUserID string
	Comment     string
}

// ExpenseDetail is an expense with its approval history, oldest first
type ExpenseDetail struct {
	Expense *entity.Expense           `json:"expense"`
	History []*entity.ApprovalHistory `json:"history"`
}

// ExpenseService manages the expense lifecycle
type ExpenseService interface {
	Create(ctx context.Context, input CreateExpenseInput) (*entity.Expense, error)
	// List returns an empty slice for an empty companyID
	List(ctx context.Context, companyID string, filter port.ExpenseFilter) ([]*entity.Expense, error)
	Get(ctx context.Context, expenseID string) (*ExpenseDetail, error)
	Transition(ctx context.Context, input TransitionInput) (*entity.Expense, error)
}

type expenseServiceImpl struct {
	companyRepo port.CompanyRepository
	userRepo    port.UserRepository
	expenseRepo port.ExpenseRepository
	historyRepo port.HistoryRepository
	rules       RuleService
	engine      workflow.WorkflowEngine
	converter   *currency.Converter
	logger      Logger
}

// ExpenseDeps groups ExpenseService collaborators
type ExpenseDeps struct {
	CompanyRepo port.CompanyRepository
	UserRepo    port.UserRepository
	ExpenseRepo port.ExpenseRepository
	HistoryRepo port.HistoryRepository
	Rules       RuleService
	Engine      workflow.WorkflowEngine
	Converter   *currency.Converter
	Logger      Logger
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(deps ExpenseDeps) ExpenseService {
	converter := deps.Converter
	if converter == nil {
		converter = currency.NewConverter()
	}
	return &expenseServiceImpl{
		companyRepo: deps.CompanyRepo,
		userRepo:    deps.UserRepo,
		expenseRepo: deps.ExpenseRepo,
		historyRepo: deps.HistoryRepo,
		rules:       deps.Rules,
		engine:      deps.Engine,
		converter:   converter,
		logger:      orNop(deps.Logger),
	}
}

func (s *expenseServiceImpl) Create(ctx context.Context, input CreateExpenseInput) (*entity.Expense, error) {
	if input.Amount <= 0 {
		return nil, BadRequest("amount must be greater than 0")
	}

	company, err := s.companyRepo.GetByID(ctx, input.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	if company == nil {
		return nil, NotFound("Company not found")
	}

	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || user.CompanyID != company.ID {
		return nil, NotFound("User not found")
	}

	rule, err := s.rules.GetRule(ctx, company.ID)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(input.Currency))
	if code == "" {
		return nil, BadRequest("currency is required")
	}
	converted := s.converter.Convert(input.Amount, code, company.DefaultCurrency)

	expense := &entity.Expense{
		CompanyID:         company.ID,
		UserID:            user.ID,
		Description:       input.Description,
		Category:          strings.TrimSpace(input.Category),
		Amount:            input.Amount,
		Currency:          code,
		ConvertedAmount:   converted.Amount,
		ConvertedCurrency: converted.Currency,
		Vendor:            input.Vendor,
		ExpenseDate:       input.ExpenseDate,
		ReceiptName:       input.ReceiptName,
	}

	autoApprove := AutoApprove(expense.Category, rule)
	if err := s.engine.Submit(ctx, expense, autoApprove); err != nil {
		s.logger.Error("Failed to submit expense", "company_id", company.ID, "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("failed to submit expense: %w", err)
	}

	s.logger.Info("Expense submitted",
		"expense_id", expense.ID,
		"company_id", company.ID,
		"status", expense.Status,
		"auto_approved", autoApprove,
	)
	return expense, nil
}

func (s *expenseServiceImpl) List(ctx context.Context, companyID string, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	if companyID == "" {
		return []*entity.Expense{}, nil
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, BadRequest("status must be pending, approved or rejected")
	}

	expenses, err := s.expenseRepo.List(ctx, companyID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

func (s *expenseServiceImpl) Get(ctx context.Context, expenseID string) (*ExpenseDetail, error) {
	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	if expense == nil {
		return nil, NotFound("Expense not found")
	}

	history, err := s.historyRepo.ListByExpense(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval history: %w", err)
	}

	return &ExpenseDetail{Expense: expense, History: history}, nil
}

func (s *expenseServiceImpl) Transition(ctx context.Context, input TransitionInput) (*entity.Expense, error) {
	expense, err := s.engine.Decide(ctx, workflow.Decision{
		ExpenseID:   input.ExpenseID,
		Status:      input.Status,
		ActorUserID: input.ActorUserID,
		Comment:     strings.TrimSpace(input.Comment),
	})
	switch {
	case err == nil:
	case errors.Is(err, workflow.ErrExpenseNotFound):
		return nil, NotFound("Expense not found")
	case errors.Is(err, domainwf.ErrInvalidTransition):
		return nil, Conflict("Expense has already been decided", err)
	case errors.Is(err, domainwf.ErrInvalidState):
		return nil, BadRequest("status must be approved or rejected")
	default:
		s.logger.Error("Failed to transition expense", "expense_id", input.ExpenseID, "status", input.Status, "error", err)
		return nil, fmt.Errorf("failed to transition expense: %w", err)
	}

	s.logger.Info("Expense decided",
		"expense_id", expense.ID,
		"status", expense.Status,
		"actor_user_id", *expense.DecidedBy,
	)
	return expense, nil
}
