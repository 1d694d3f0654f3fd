package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const expenseColumns = `id, company_id, user_id, description, category, amount, currency,
	converted_amount, converted_currency, vendor, expense_date, status,
	receipt_name, created_at, decided_at, decided_by`

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an expense
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.NewString()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO expenses (` + expenseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		expense.ID,
		expense.CompanyID,
		expense.UserID,
		expense.Description,
		expense.Category,
		expense.Amount,
		expense.Currency,
		expense.ConvertedAmount,
		expense.ConvertedCurrency,
		expense.Vendor,
		expense.ExpenseDate,
		string(expense.Status),
		expense.ReceiptName,
		expense.CreatedAt.UTC(),
		nullTime(expense.DecidedAt),
		nullString(expense.DecidedBy),
	)
	if err != nil {
		r.logger.Error("Failed to create expense", zap.String("id", expense.ID), zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}

	return nil
}

// GetByID returns nil, nil when the expense does not exist
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

	expense, err := scanExpense(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// List returns the company's expenses newest first; rowid breaks timestamp ties
func (r *ExpenseRepository) List(ctx context.Context, companyID string, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	conditions := []string{"company_id = ?"}
	args := []interface{}{companyID}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY created_at DESC, rowid DESC`

	return r.query(ctx, query, args...)
}

// ListPendingByUsers returns pending expenses of the given users, oldest first
func (r *ExpenseRepository) ListPendingByUsers(ctx context.Context, userIDs []string) ([]*entity.Expense, error) {
	if len(userIDs) == 0 {
		return []*entity.Expense{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(userIDs)), ", ")
	args := make([]interface{}, 0, len(userIDs)+1)
	args = append(args, string(entity.StatusPending))
	for _, id := range userIDs {
		args = append(args, id)
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses
		WHERE status = ? AND user_id IN (` + placeholders + `)
		ORDER BY rowid ASC`

	return r.query(ctx, query, args...)
}

// UpdateStatus moves the expense only if it is still in change.From
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, id string, change port.StatusChange) (bool, error) {
	query := `
		UPDATE expenses
		SET status = ?, decided_by = ?, decided_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		string(change.To),
		change.DecidedBy,
		change.DecidedAt.UTC(),
		id,
		string(change.From),
	)
	if err != nil {
		r.logger.Error("Failed to update expense status",
			zap.String("id", id),
			zap.String("status", string(change.To)),
			zap.Error(err))
		return false, fmt.Errorf("failed to update expense status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected == 1, nil
}

func (r *ExpenseRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Expense, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]*entity.Expense, 0)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}

	return expenses, rows.Err()
}

func scanExpense(row rowScanner) (*entity.Expense, error) {
	var expense entity.Expense
	var status string
	var decidedAt sql.NullTime
	var decidedBy sql.NullString

	if err := row.Scan(
		&expense.ID,
		&expense.CompanyID,
		&expense.UserID,
		&expense.Description,
		&expense.Category,
		&expense.Amount,
		&expense.Currency,
		&expense.ConvertedAmount,
		&expense.ConvertedCurrency,
		&expense.Vendor,
		&expense.ExpenseDate,
		&status,
		&expense.ReceiptName,
		&expense.CreatedAt,
		&decidedAt,
		&decidedBy,
	); err != nil {
		return nil, err
	}

	expense.Status = entity.ExpenseStatus(status)
	expense.CreatedAt = expense.CreatedAt.UTC()
	expense.DecidedAt = timePtr(decidedAt)
	expense.DecidedBy = stringPtr(decidedBy)
	return &expense, nil
}

var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
