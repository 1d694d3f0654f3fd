package workflow

import "github.com/garyjia/expense-approvals/internal/domain/entity"

// Trigger is a decision that moves an expense between states
type Trigger string

const (
	TriggerApprove     Trigger = "approve"
	TriggerReject      Trigger = "reject"
	TriggerAutoApprove Trigger = "auto_approve"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// Action returns the history action recorded when the trigger fires
func (t Trigger) Action() entity.HistoryAction {
	if t == TriggerReject {
		return entity.ActionReject
	}
	return entity.ActionApprove
}

// TriggerFor maps a requested target status to the manual trigger reaching it
func TriggerFor(status entity.ExpenseStatus) (Trigger, error) {
	switch status {
	case entity.StatusApproved:
		return TriggerApprove, nil
	case entity.StatusRejected:
		return TriggerReject, nil
	}
	return "", ErrInvalidState
}
