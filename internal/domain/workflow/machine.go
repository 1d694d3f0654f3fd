package workflow

import "context"

// StateMachine tracks the state of one expense and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is configured for the current state
	CanFire(trigger Trigger) bool

	// Target resolves the state the trigger would lead to without changing the machine
	Target(ctx context.Context, trigger Trigger) (State, error)

	// Fire executes the trigger, moving the machine to the target state
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}
