package entity

// Role is the permission level of a user within a company
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// CanReview reports whether users with this role may approve or reject expenses
func (r Role) CanReview() bool {
	return r == RoleAdmin || r == RoleManager
}

// ExpenseStatus is the lifecycle status of an expense
type ExpenseStatus string

const (
	StatusPending  ExpenseStatus = "pending"
	StatusApproved ExpenseStatus = "approved"
	StatusRejected ExpenseStatus = "rejected"
)

// IsValid reports whether s is a known status
func (s ExpenseStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// HistoryAction is the kind of entry recorded in the approval history
type HistoryAction string

const (
	ActionSubmit  HistoryAction = "submit"
	ActionApprove HistoryAction = "approve"
	ActionReject  HistoryAction = "reject"
)

const (
	// SystemActor marks decisions taken by a workflow rule rather than a person
	SystemActor = "system"

	// AutoApproveComment is recorded on the approve row written by auto-approval
	AutoApproveComment = "Auto-approved by rule"

	// DefaultRuleName is used when a rule is saved without a name
	DefaultRuleName = "Default"
)
