package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc decides at fire time whether a guarded transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects a transition table and stamps out machines from it
type StateMachineBuilder interface {
	// Configure returns the transition configuration for the given source state
	Configure(state State) StateConfiguration

	// Build creates a machine positioned at initialState.
	// The machine gets its own copy of the table; later Configure calls do not affect it.
	Build(initialState State) StateMachine
}

// StateConfiguration configures outgoing transitions of one state
type StateConfiguration interface {
	// Permit allows trigger to move the machine to toState
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows trigger to move the machine to toState when guard passes.
	// Guarded transitions for the same trigger are tried in registration order.
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type transition struct {
	toState State
	guard   GuardFunc
}

type transitionTable map[State]map[Trigger][]transition

type stateConfig struct {
	fromState State
	table     transitionTable
}

type stateMachineBuilder struct {
	table transitionTable
}

type stateMachine struct {
	currentState State
	table        transitionTable
}

// NewBuilder creates an empty state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		table: make(transitionTable),
	}
}

// Configure panics on unknown states: the table is static program configuration.
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	if _, exists := b.table[state]; !exists {
		b.table[state] = make(map[Trigger][]transition)
	}

	return &stateConfig{fromState: state, table: b.table}
}

func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	tableCopy := make(transitionTable, len(b.table))
	for state, triggers := range b.table {
		triggersCopy := make(map[Trigger][]transition, len(triggers))
		for trigger, transitions := range triggers {
			triggersCopy[trigger] = append([]transition(nil), transitions...)
		}
		tableCopy[state] = triggersCopy
	}

	return &stateMachine{
		currentState: initialState,
		table:        tableCopy,
	}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	c.table[c.fromState][trigger] = append(c.table[c.fromState][trigger], transition{
		toState: toState,
		guard:   guard,
	})

	return c
}

func (m *stateMachine) State() State {
	return m.currentState
}

// CanFire does not evaluate guards; it only reports whether the trigger is configured.
func (m *stateMachine) CanFire(trigger Trigger) bool {
	return len(m.table[m.currentState][trigger]) > 0
}

func (m *stateMachine) Target(ctx context.Context, trigger Trigger) (State, error) {
	transitions := m.table[m.currentState][trigger]
	if len(transitions) == 0 {
		return "", fmt.Errorf("%w: cannot %s an expense that is %s", ErrInvalidTransition, trigger, m.currentState)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			return t.toState, nil
		}
	}

	return "", fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.currentState)
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	next, err := m.Target(ctx, trigger)
	if err != nil {
		return err
	}
	m.currentState = next
	return nil
}

// PermittedTriggers returns triggers sorted by name.
func (m *stateMachine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.table[m.currentState]))
	for trigger, transitions := range m.table[m.currentState] {
		if len(transitions) > 0 {
			triggers = append(triggers, trigger)
		}
	}

	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
