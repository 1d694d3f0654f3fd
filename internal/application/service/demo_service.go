package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/google/uuid"
)

// Fixed identifiers of the demo tenant
const (
	DemoCompanyID  = "demo-company-123"
	DemoAdminID    = "demo-admin-001"
	DemoManagerID  = "demo-manager-001"
	DemoEmployeeID = "demo-employee-001"
)

// DemoCredential tells a tester how to act as one demo user
type DemoCredential struct {
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
}

// DemoResult summarizes an InitDemo call
type DemoResult struct {
	Message               string                    `json:"message"`
	Company               *entity.Company           `json:"company,omitempty"`
	Users                 []*entity.User            `json:"users,omitempty"`
	SampleExpensesCreated int                       `json:"sampleExpensesCreated"`
	Credentials           map[string]DemoCredential `json:"credentials"`
}

// DemoService seeds a ready-to-use demo tenant
type DemoService interface {
	// InitDemo creates the demo tenant once; later calls leave it untouched
	InitDemo(ctx context.Context) (*DemoResult, error)
}

type demoServiceImpl struct {
	companyRepo port.CompanyRepository
	userRepo    port.UserRepository
	expenseRepo port.ExpenseRepository
	historyRepo port.HistoryRepository
	ruleRepo    port.WorkflowRuleRepository
	txManager   port.TransactionManager
	tokens      map[entity.Role]string
	now         func() time.Time
	logger      Logger
}

// DemoDeps groups DemoService collaborators.
// Tokens maps a demo role to the bearer token configured for it.
type DemoDeps struct {
	CompanyRepo port.CompanyRepository
	UserRepo    port.UserRepository
	ExpenseRepo port.ExpenseRepository
	HistoryRepo port.HistoryRepository
	RuleRepo    port.WorkflowRuleRepository
	TxManager   port.TransactionManager
	Tokens      map[entity.Role]string
	Logger      Logger
}

// NewDemoService creates a new DemoService
func NewDemoService(deps DemoDeps) DemoService {
	return &demoServiceImpl{
		companyRepo: deps.CompanyRepo,
		userRepo:    deps.UserRepo,
		expenseRepo: deps.ExpenseRepo,
		historyRepo: deps.HistoryRepo,
		ruleRepo:    deps.RuleRepo,
		txManager:   deps.TxManager,
		tokens:      deps.Tokens,
		now:         time.Now,
		logger:      orNop(deps.Logger),
	}
}

type demoUser struct {
	id      string
	name    string
	email   string
	role    entity.Role
	manager string
}

var demoUsers = []demoUser{
	{DemoAdminID, "Alex Administrator", "admin@demoexpense.com", entity.RoleAdmin, ""},
	{DemoManagerID, "Maria Manager", "manager@demoexpense.com", entity.RoleManager, ""},
	{DemoEmployeeID, "John Employee", "employee@demoexpense.com", entity.RoleEmployee, DemoManagerID},
}

type demoExpense struct {
	id          string
	description string
	category    string
	amount      float64
	vendor      string
	date        string
	status      entity.ExpenseStatus
	comment     string
}

// Listed oldest first
var demoExpenses = []demoExpense{
	{"demo-expense-003", "Annual subscription to productivity tools", "Software", 299.00, "Productivity Suite Inc", "2025-09-25", entity.StatusRejected, "Please use the company license instead"},
	{"demo-expense-002", "Team lunch with clients", "Meals", 85.50, "Bistro Central", "2025-09-28", entity.StatusApproved, ""},
	{"demo-expense-001", "Flight to client meeting in Boston", "Travel", 450.00, "Delta Airlines", "2025-10-01", entity.StatusPending, ""},
}

func (s *demoServiceImpl) credentials() map[string]DemoCredential {
	creds := make(map[string]DemoCredential, len(demoUsers))
	for _, u := range demoUsers {
		creds[string(u.role)] = DemoCredential{Email: u.email, Token: s.tokens[u.role]}
	}
	return creds
}

func (s *demoServiceImpl) InitDemo(ctx context.Context) (*DemoResult, error) {
	result := &DemoResult{Credentials: s.credentials()}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.companyRepo.GetByID(txCtx, DemoCompanyID)
		if err != nil {
			return fmt.Errorf("failed to get demo company: %w", err)
		}
		if existing != nil {
			result.Message = "Demo data already exists"
			return nil
		}

		base := s.now().UTC()
		company := &entity.Company{
			ID:              DemoCompanyID,
			Name:            "Demo Expense Corp",
			CountryCode:     "US",
			DefaultCurrency: "USD",
			CreatedAt:       base,
		}
		if err := s.companyRepo.Create(txCtx, company); err != nil {
			return fmt.Errorf("failed to create demo company: %w", err)
		}
		result.Company = company

		for _, du := range demoUsers {
			user := &entity.User{
				ID:        du.id,
				CompanyID: company.ID,
				Name:      du.name,
				Email:     du.email,
				Role:      du.role,
				CreatedAt: base,
			}
			if du.manager != "" {
				manager := du.manager
				user.ManagerID = &manager
			}
			if err := s.userRepo.Create(txCtx, user); err != nil {
				return fmt.Errorf("failed to create demo user %s: %w", du.email, err)
			}
			result.Users = append(result.Users, user)
		}

		if err := s.ruleRepo.Save(txCtx, &entity.WorkflowRule{
			ID:        uuid.NewString(),
			CompanyID: company.ID,
			Name:      entity.DefaultRuleName,
			Config:    entity.RuleConfig{AutoApproveCategories: []string{"Meals"}},
			CreatedAt: base,
		}); err != nil {
			return fmt.Errorf("failed to create demo rule: %w", err)
		}

		for i, de := range demoExpenses {
			createdAt := base.Add(time.Duration(i) * time.Millisecond)
			if err := s.seedExpense(txCtx, de, createdAt); err != nil {
				return err
			}
			result.SampleExpensesCreated++
		}

		result.Message = "Demo data initialized"
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to initialize demo data", "error", err)
		return nil, err
	}

	s.logger.Info(result.Message, "company_id", DemoCompanyID, "sample_expenses", result.SampleExpensesCreated)
	return result, nil
}

func (s *demoServiceImpl) seedExpense(ctx context.Context, de demoExpense, createdAt time.Time) error {
	expense := &entity.Expense{
		ID:                de.id,
		CompanyID:         DemoCompanyID,
		UserID:            DemoEmployeeID,
		Description:       de.description,
		Category:          de.category,
		Amount:            de.amount,
		Currency:          "USD",
		ConvertedAmount:   de.amount,
		ConvertedCurrency: "USD",
		Vendor:            de.vendor,
		ExpenseDate:       de.date,
		Status:            de.status,
		CreatedAt:         createdAt,
	}

	rows := []*entity.ApprovalHistory{{
		ID:          uuid.NewString(),
		ExpenseID:   de.id,
		ActorUserID: DemoEmployeeID,
		Action:      entity.ActionSubmit,
		CreatedAt:   createdAt,
	}}

	switch de.status {
	case entity.StatusApproved:
		decidedBy := entity.SystemActor
		expense.DecidedBy = &decidedBy
		expense.DecidedAt = &createdAt
		rows = append(rows, &entity.ApprovalHistory{
			ID:          uuid.NewString(),
			ExpenseID:   de.id,
			ActorUserID: DemoEmployeeID,
			Action:      entity.ActionApprove,
			Comment:     entity.AutoApproveComment,
			CreatedAt:   createdAt,
		})
	case entity.StatusRejected:
		decidedBy := DemoManagerID
		expense.DecidedBy = &decidedBy
		expense.DecidedAt = &createdAt
		rows = append(rows, &entity.ApprovalHistory{
			ID:          uuid.NewString(),
			ExpenseID:   de.id,
			ActorUserID: DemoManagerID,
			Action:      entity.ActionReject,
			Comment:     de.comment,
			CreatedAt:   createdAt,
		})
	}

	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		return fmt.Errorf("failed to create demo expense %s: %w", de.id, err)
	}
	for _, row := range rows {
		if err := s.historyRepo.Create(ctx, row); err != nil {
			return fmt.Errorf("failed to create demo history for %s: %w", de.id, err)
		}
	}
	return nil
}
