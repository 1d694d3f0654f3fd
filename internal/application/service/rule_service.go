package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// UpsertRuleInput carries a rule write; nil fields were absent from the request
type UpsertRuleInput struct {
	ID                     string
	CompanyID              string
	Name                   *string
	MinimumApprovalPercent *float64
	Config                 *entity.RuleConfig
}

// RuleService manages the per-company workflow rule
type RuleService interface {
	// GetRule returns nil when the company has no rule
	GetRule(ctx context.Context, companyID string) (*entity.WorkflowRule, error)

	// Upsert merges into the company's rule when input.ID names it,
	// otherwise replaces the rule with a fresh one built from input
	Upsert(ctx context.Context, input UpsertRuleInput) (*entity.WorkflowRule, error)
}

type ruleServiceImpl struct {
	companyRepo port.CompanyRepository
	ruleRepo    port.WorkflowRuleRepository
	txManager   port.TransactionManager
	logger      Logger
}

// NewRuleService creates a new RuleService
func NewRuleService(
	companyRepo port.CompanyRepository,
	ruleRepo port.WorkflowRuleRepository,
	txManager port.TransactionManager,
	logger Logger,
) RuleService {
	return &ruleServiceImpl{
		companyRepo: companyRepo,
		ruleRepo:    ruleRepo,
		txManager:   txManager,
		logger:      orNop(logger),
	}
}

func (s *ruleServiceImpl) GetRule(ctx context.Context, companyID string) (*entity.WorkflowRule, error) {
	rule, err := s.ruleRepo.GetByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow rule: %w", err)
	}
	return rule, nil
}

func (s *ruleServiceImpl) Upsert(ctx context.Context, input UpsertRuleInput) (*entity.WorkflowRule, error) {
	if input.CompanyID == "" {
		return nil, BadRequest("companyId is required")
	}
	if p := input.MinimumApprovalPercent; p != nil && (*p < 0 || *p > 100) {
		return nil, BadRequest("minimumApprovalPercent must be between 0 and 100")
	}

	var saved *entity.WorkflowRule
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		company, err := s.companyRepo.GetByID(txCtx, input.CompanyID)
		if err != nil {
			return fmt.Errorf("failed to get company: %w", err)
		}
		if company == nil {
			return NotFound("Company not found")
		}

		existing, err := s.ruleRepo.GetByCompany(txCtx, input.CompanyID)
		if err != nil {
			return fmt.Errorf("failed to get workflow rule: %w", err)
		}

		var rule *entity.WorkflowRule
		if existing != nil && input.ID != "" && existing.ID == input.ID {
			rule = mergeRule(existing, input)
		} else {
			rule = newRule(input)
		}

		if err := s.ruleRepo.Save(txCtx, rule); err != nil {
			return fmt.Errorf("failed to save workflow rule: %w", err)
		}
		saved = rule
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Workflow rule saved",
		"company_id", saved.CompanyID,
		"rule_id", saved.ID,
		"auto_approve_categories", len(saved.Config.AutoApproveCategories),
	)
	return saved, nil
}

func mergeRule(existing *entity.WorkflowRule, input UpsertRuleInput) *entity.WorkflowRule {
	rule := *existing
	if input.Name != nil {
		rule.Name = defaultName(*input.Name)
	}
	if input.MinimumApprovalPercent != nil {
		rule.MinimumApprovalPercent = *input.MinimumApprovalPercent
	}
	if input.Config != nil {
		rule.Config = cleanConfig(*input.Config)
	}
	return &rule
}

func newRule(input UpsertRuleInput) *entity.WorkflowRule {
	rule := &entity.WorkflowRule{
		ID:        uuid.NewString(),
		CompanyID: input.CompanyID,
		Name:      entity.DefaultRuleName,
		CreatedAt: time.Now().UTC(),
	}
	if input.Name != nil {
		rule.Name = defaultName(*input.Name)
	}
	if input.MinimumApprovalPercent != nil {
		rule.MinimumApprovalPercent = *input.MinimumApprovalPercent
	}
	if input.Config != nil {
		rule.Config = cleanConfig(*input.Config)
	}
	return rule
}

func defaultName(name string) string {
	if strings.TrimSpace(name) == "" {
		return entity.DefaultRuleName
	}
	return strings.TrimSpace(name)
}

// cleanConfig drops blank categories and duplicates under case folding
func cleanConfig(config entity.RuleConfig) entity.RuleConfig {
	if len(config.AutoApproveCategories) == 0 {
		return entity.RuleConfig{}
	}

	fold := cases.Fold()
	seen := make(map[string]struct{}, len(config.AutoApproveCategories))
	categories := make([]string, 0, len(config.AutoApproveCategories))
	for _, c := range config.AutoApproveCategories {
		c = strings.TrimSpace(c)
		key := fold.String(c)
		if c == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		categories = append(categories, c)
	}
	return entity.RuleConfig{AutoApproveCategories: categories}
}

// AutoApprove reports whether category is one of the rule's auto-approve
// categories under Unicode case folding. A nil rule approves nothing.
func AutoApprove(category string, rule *entity.WorkflowRule) bool {
	if rule == nil {
		return false
	}

	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(category))
	if want == "" {
		return false
	}
	for _, c := range rule.Config.AutoApproveCategories {
		if fold.String(strings.TrimSpace(c)) == want {
			return true
		}
	}
	return false
}
