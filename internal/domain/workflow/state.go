package workflow

import "github.com/garyjia/expense-approvals/internal/domain/entity"

// State is a node of the expense status machine. Values match entity.ExpenseStatus.
type State string

const (
	StatePending  State = State(entity.StatusPending)
	StateApproved State = State(entity.StatusApproved)
	StateRejected State = State(entity.StatusRejected)
)

var validStates = map[State]bool{
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
}

var terminalStates = map[State]bool{
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true if no transition may leave the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known expense state
func (s State) IsValid() bool {
	return validStates[s]
}

// Status converts the state back to the persisted expense status
func (s State) Status() entity.ExpenseStatus {
	return entity.ExpenseStatus(s)
}
