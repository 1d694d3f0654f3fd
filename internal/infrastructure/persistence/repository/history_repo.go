package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO approval_history (
			id, expense_id, actor_user_id, action, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		history.ID,
		history.ExpenseID,
		history.ActorUserID,
		string(history.Action),
		history.Comment,
		history.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("expense_id", history.ExpenseID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	return nil
}

// ListByExpense returns the records of one expense, oldest first
func (r *HistoryRepository) ListByExpense(ctx context.Context, expenseID string) ([]*entity.ApprovalHistory, error) {
	query := `
		SELECT id, expense_id, actor_user_id, action, comment, created_at
		FROM approval_history
		WHERE expense_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to get history by expense ID", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := make([]*entity.ApprovalHistory, 0)
	for rows.Next() {
		var record entity.ApprovalHistory
		var action string
		if err := rows.Scan(
			&record.ID,
			&record.ExpenseID,
			&record.ActorUserID,
			&action,
			&record.Comment,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		record.Action = entity.HistoryAction(action)
		record.CreatedAt = record.CreatedAt.UTC()
		records = append(records, &record)
	}

	return records, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
