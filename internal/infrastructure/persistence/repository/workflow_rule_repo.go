package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkflowRuleRepository implements port.WorkflowRuleRepository
type WorkflowRuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRuleRepository creates a new workflow rule repository
func NewWorkflowRuleRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRuleRepository {
	return &WorkflowRuleRepository{
		db:     db,
		logger: logger,
	}
}

// GetByCompany returns nil, nil when the company has no rule
func (r *WorkflowRuleRepository) GetByCompany(ctx context.Context, companyID string) (*entity.WorkflowRule, error) {
	query := `
		SELECT id, company_id, name, minimum_approval_percent, config, created_at
		FROM workflow_rules
		WHERE company_id = ?
	`

	var rule entity.WorkflowRule
	var config string
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, companyID).Scan(
		&rule.ID,
		&rule.CompanyID,
		&rule.Name,
		&rule.MinimumApprovalPercent,
		&config,
		&rule.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow rule", zap.String("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow rule: %w", err)
	}

	if err := json.Unmarshal([]byte(config), &rule.Config); err != nil {
		return nil, fmt.Errorf("failed to decode workflow rule config: %w", err)
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	return &rule, nil
}

// Save writes the company's single rule, replacing any previous row for the company
func (r *WorkflowRuleRepository) Save(ctx context.Context, rule *entity.WorkflowRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	config, err := json.Marshal(rule.Config)
	if err != nil {
		return fmt.Errorf("failed to encode workflow rule config: %w", err)
	}

	query := `
		INSERT INTO workflow_rules (id, company_id, name, minimum_approval_percent, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			id = excluded.id,
			name = excluded.name,
			minimum_approval_percent = excluded.minimum_approval_percent,
			config = excluded.config,
			created_at = excluded.created_at
	`

	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		rule.ID,
		rule.CompanyID,
		rule.Name,
		rule.MinimumApprovalPercent,
		string(config),
		rule.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to save workflow rule", zap.String("company_id", rule.CompanyID), zap.Error(err))
		return fmt.Errorf("failed to save workflow rule: %w", err)
	}

	return nil
}

var _ port.WorkflowRuleRepository = (*WorkflowRuleRepository)(nil)
