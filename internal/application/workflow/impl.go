package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/dispatcher"
	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/event"
	domainwf "github.com/garyjia/expense-approvals/internal/domain/workflow"
	"github.com/google/uuid"
)

type engineImpl struct {
	expenseRepo port.ExpenseRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	now         func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	expenseRepo port.ExpenseRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		expenseRepo: expenseRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *engineImpl) StateMachine(expense *entity.Expense) (domainwf.StateMachine, error) {
	state := domainwf.State(expense.Status)
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: expense %s has status %q", domainwf.ErrInvalidState, expense.ID, expense.Status)
	}
	return BuildExpenseStateMachine(state), nil
}

func (e *engineImpl) Submit(ctx context.Context, expense *entity.Expense, autoApprove bool) error {
	now := e.now().UTC()
	if expense.ID == "" {
		expense.ID = uuid.NewString()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = now
	}

	machine := BuildExpenseStateMachine(domainwf.StatePending)
	if autoApprove {
		if err := machine.Fire(ctx, domainwf.TriggerAutoApprove); err != nil {
			return err
		}
		decidedBy := entity.SystemActor
		expense.DecidedBy = &decidedBy
		expense.DecidedAt = &now
	}
	expense.Status = machine.State().Status()

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.expenseRepo.Create(txCtx, expense); err != nil {
			return fmt.Errorf("failed to create expense: %w", err)
		}

		if err := e.historyRepo.Create(txCtx, &entity.ApprovalHistory{
			ID:          uuid.NewString(),
			ExpenseID:   expense.ID,
			ActorUserID: expense.UserID,
			Action:      entity.ActionSubmit,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		if !autoApprove {
			return nil
		}

		if err := e.historyRepo.Create(txCtx, &entity.ApprovalHistory{
			ID:          uuid.NewString(),
			ExpenseID:   expense.ID,
			ActorUserID: expense.UserID,
			Action:      domainwf.TriggerAutoApprove.Action(),
			Comment:     entity.AutoApproveComment,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	correlationID := uuid.NewString()
	e.emit(ctx, event.NewEventWithCorrelation(event.TypeExpenseSubmitted, expense.CompanyID, expense.ID,
		map[string]interface{}{
			event.KeyNewStatus:   string(expense.Status),
			event.KeyActorUserID: expense.UserID,
		}, correlationID))

	if autoApprove {
		e.emit(ctx, event.NewEventWithCorrelation(event.TypeExpenseApproved, expense.CompanyID, expense.ID,
			map[string]interface{}{
				event.KeyPreviousStatus: string(entity.StatusPending),
				event.KeyNewStatus:      string(entity.StatusApproved),
				event.KeyActorUserID:    entity.SystemActor,
				event.KeyComment:        entity.AutoApproveComment,
				event.KeyAuto:           true,
			}, correlationID))
	}

	return nil
}

func (e *engineImpl) Decide(ctx context.Context, decision Decision) (*entity.Expense, error) {
	trigger, err := domainwf.TriggerFor(decision.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a decision", err, decision.Status)
	}

	expense, err := e.expenseRepo.GetByID(ctx, decision.ExpenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense: %w", err)
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}

	machine, err := e.StateMachine(expense)
	if err != nil {
		return nil, err
	}

	previous := machine.State()
	next, err := machine.Target(ctx, trigger)
	if err != nil {
		return nil, err
	}

	actor := decision.ActorUserID
	if actor == "" {
		actor = expense.UserID
	}
	now := e.now().UTC()

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		matched, err := e.expenseRepo.UpdateStatus(txCtx, expense.ID, port.StatusChange{
			From:      previous.Status(),
			To:        next.Status(),
			DecidedBy: actor,
			DecidedAt: now,
		})
		if err != nil {
			return fmt.Errorf("failed to update expense status: %w", err)
		}
		if !matched {
			return fmt.Errorf("%w: expense %s is no longer %s", domainwf.ErrInvalidTransition, expense.ID, previous)
		}

		if err := e.historyRepo.Create(txCtx, &entity.ApprovalHistory{
			ID:          uuid.NewString(),
			ExpenseID:   expense.ID,
			ActorUserID: actor,
			Action:      trigger.Action(),
			Comment:     decision.Comment,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := machine.Fire(ctx, trigger); err != nil {
		return nil, err
	}
	expense.Status = machine.State().Status()
	expense.DecidedBy = &actor
	expense.DecidedAt = &now

	payload := map[string]interface{}{
		event.KeyPreviousStatus: previous.String(),
		event.KeyNewStatus:      machine.State().String(),
		event.KeyActorUserID:    actor,
		event.KeyComment:        decision.Comment,
	}
	decisionType := event.TypeExpenseApproved
	if trigger == domainwf.TriggerReject {
		decisionType = event.TypeExpenseRejected
	}

	correlationID := uuid.NewString()
	e.emit(ctx, event.NewEventWithCorrelation(decisionType, expense.CompanyID, expense.ID, payload, correlationID))
	e.emit(ctx, event.NewEventWithCorrelation(event.TypeExpenseStatusChanged, expense.CompanyID, expense.ID, payload, correlationID))

	return expense, nil
}

func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}
