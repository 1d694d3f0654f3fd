package entity

import "time"

// RuleConfig holds the evaluated part of a workflow rule
type RuleConfig struct {
	AutoApproveCategories []string `json:"autoApproveCategories,omitempty"`
}

// WorkflowRule is the per-company approval configuration.
// MinimumApprovalPercent is stored but not evaluated.
type WorkflowRule struct {
	ID                     string     `json:"id"`
	CompanyID              string     `json:"companyId"`
	Name                   string     `json:"name"`
	MinimumApprovalPercent float64    `json:"minimumApprovalPercent"`
	Config                 RuleConfig `json:"config"`
	CreatedAt              time.Time  `json:"createdAt"`
}
