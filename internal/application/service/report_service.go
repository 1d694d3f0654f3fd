package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
)

// ReportInfo describes a rendered report
type ReportInfo struct {
	Filename    string
	ContentType string
	Rows        int
}

// ReportService exports company expenses as a spreadsheet
type ReportService interface {
	// Export writes the report of the company's expenses matching filter to w
	Export(ctx context.Context, companyID string, filter port.ExpenseFilter, w io.Writer) (*ReportInfo, error)
}

type reportServiceImpl struct {
	companyRepo port.CompanyRepository
	userRepo    port.UserRepository
	expenseRepo port.ExpenseRepository
	writer      port.ReportWriter
	now         func() time.Time
	logger      Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	companyRepo port.CompanyRepository,
	userRepo port.UserRepository,
	expenseRepo port.ExpenseRepository,
	writer port.ReportWriter,
	logger Logger,
) ReportService {
	return &reportServiceImpl{
		companyRepo: companyRepo,
		userRepo:    userRepo,
		expenseRepo: expenseRepo,
		writer:      writer,
		now:         time.Now,
		logger:      orNop(logger),
	}
}

func (s *reportServiceImpl) Export(ctx context.Context, companyID string, filter port.ExpenseFilter, w io.Writer) (*ReportInfo, error) {
	if companyID == "" {
		return nil, BadRequest("companyId is required")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, BadRequest("status must be pending, approved or rejected")
	}

	company, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	if company == nil {
		return nil, NotFound("Company not found")
	}

	users, err := s.userRepo.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	expenses, err := s.expenseRepo.List(ctx, company.ID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	rows := make([]port.ReportRow, 0, len(expenses))
	for _, e := range expenses {
		employee := names[e.UserID]
		if employee == "" {
			employee = UnknownEmployee
		}
		rows = append(rows, port.ReportRow{
			ExpenseDate:       e.ExpenseDate,
			Employee:          employee,
			Category:          e.Category,
			Vendor:            e.Vendor,
			Description:       e.Description,
			Amount:            e.Amount,
			Currency:          e.Currency,
			ConvertedAmount:   e.ConvertedAmount,
			ConvertedCurrency: e.ConvertedCurrency,
			Status:            string(e.Status),
		})
	}

	title := company.Name + " expenses"
	if err := s.writer.WriteExpenseReport(ctx, w, title, rows); err != nil {
		s.logger.Error("Failed to render expense report", "company_id", company.ID, "error", err)
		return nil, fmt.Errorf("failed to render expense report: %w", err)
	}

	info := &ReportInfo{
		Filename:    fmt.Sprintf("expenses-%s-%s%s", company.ID, s.now().UTC().Format("20060102"), s.writer.FileExtension()),
		ContentType: s.writer.ContentType(),
		Rows:        len(rows),
	}
	s.logger.Info("Expense report exported", "company_id", company.ID, "rows", info.Rows)
	return info, nil
}
