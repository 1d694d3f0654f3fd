package workflow

import (
	domainwf "github.com/garyjia/expense-approvals/internal/domain/workflow"
)

// BuildExpenseStateMachine creates a state machine configured for expense approval.
// Approved and rejected have no outgoing transitions.
func BuildExpenseStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerAutoApprove, domainwf.StateApproved)

	return builder.Build(initialState)
}
