package event

// Type identifies the type of domain event
type Type string

const (
	TypeExpenseSubmitted     Type = "expense.submitted"
	TypeExpenseApproved      Type = "expense.approved"
	TypeExpenseRejected      Type = "expense.rejected"
	TypeExpenseStatusChanged Type = "expense.status_changed"
	TypePasswordReset        Type = "user.password_reset"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeExpenseSubmitted,
		TypeExpenseApproved,
		TypeExpenseRejected,
		TypeExpenseStatusChanged,
		TypePasswordReset:
		return true
	default:
		return false
	}
}
