package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	manager := "m1"
	require.NoError(t, s.Companies().Create(ctx, &entity.Company{ID: "c1", Name: "Acme", DefaultCurrency: "USD"}))
	require.NoError(t, s.Users().Create(ctx, &entity.User{ID: "m1", CompanyID: "c1", Email: "boss@acme.test", Role: entity.RoleManager}))
	require.NoError(t, s.Users().Create(ctx, &entity.User{ID: "e1", CompanyID: "c1", Email: "ann@acme.test", Role: entity.RoleEmployee, ManagerID: &manager}))
	require.NoError(t, s.Users().Create(ctx, &entity.User{ID: "e2", CompanyID: "c1", Email: "bob@acme.test", Role: entity.RoleEmployee, ManagerID: &manager}))
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	user, err := s.Users().GetByID(ctx, "e1")
	require.NoError(t, err)
	*user.ManagerID = "someone-else"
	user.Name = "changed"

	again, err := s.Users().GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "m1", *again.ManagerID)
	assert.Empty(t, again.Name)
}

func TestUserRepository_EmailLookupAndUniqueness(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	got, err := s.Users().GetByEmail(ctx, "c1", "ANN@ACME.TEST")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "e1", got.ID)

	missing, err := s.Users().GetByEmail(ctx, "c2", "ann@acme.test")
	require.NoError(t, err)
	assert.Nil(t, missing)

	across, err := s.Users().ListByEmail(ctx, "ann@ACME.test")
	require.NoError(t, err)
	require.Len(t, across, 1)
	assert.Equal(t, "e1", across[0].ID)

	nobody, err := s.Users().ListByEmail(ctx, "stranger@elsewhere.test")
	require.NoError(t, err)
	assert.Empty(t, nobody)

	err = s.Users().Create(ctx, &entity.User{CompanyID: "c1", Email: "Ann@acme.test", Role: entity.RoleEmployee})
	assert.Error(t, err)

	reports, err := s.Users().ListByManager(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "e1", reports[0].ID)
	assert.Equal(t, "e2", reports[1].ID)
}

func TestExpenseRepository_ListOrder(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	at := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	old := &entity.Expense{ID: "old", CompanyID: "c1", UserID: "e1", Status: entity.StatusPending, CreatedAt: at.Add(-time.Minute)}
	a := &entity.Expense{ID: "a", CompanyID: "c1", UserID: "e1", Status: entity.StatusPending, CreatedAt: at}
	b := &entity.Expense{ID: "b", CompanyID: "c1", UserID: "e2", Status: entity.StatusApproved, CreatedAt: at}
	for _, e := range []*entity.Expense{old, a, b} {
		require.NoError(t, s.Expenses().Create(ctx, e))
	}

	all, err := s.Expenses().List(ctx, "c1", port.ExpenseFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"b", "a", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})

	pending, err := s.Expenses().List(ctx, "c1", port.ExpenseFilter{Status: entity.StatusPending, UserID: "e1"})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].ID)

	queue, err := s.Expenses().ListPendingByUsers(ctx, []string{"e1", "e2"})
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "old", queue[0].ID)
	assert.Equal(t, "a", queue[1].ID)
}

func TestExpenseRepository_UpdateStatusOnlyOnce(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	require.NoError(t, s.Expenses().Create(ctx, &entity.Expense{ID: "x", CompanyID: "c1", UserID: "e1", Status: entity.StatusPending}))

	var wg sync.WaitGroup
	results := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Expenses().UpdateStatus(ctx, "x", port.StatusChange{
				From: entity.StatusPending, To: entity.StatusApproved, DecidedBy: "m1", DecidedAt: time.Now(),
			})
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	got, err := s.Expenses().GetByID(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, got.Status)
	require.NotNil(t, got.DecidedBy)
	assert.Equal(t, "m1", *got.DecidedBy)
}

func TestStore_WithTransactionRollsBack(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.Expenses().Create(txCtx, &entity.Expense{ID: "x", CompanyID: "c1", UserID: "e1", Status: entity.StatusPending}); err != nil {
			return err
		}
		if err := s.History().Create(txCtx, &entity.ApprovalHistory{ExpenseID: "x", ActorUserID: "e1", Action: entity.ActionSubmit}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Expenses().GetByID(ctx, "x")
	require.NoError(t, err)
	assert.Nil(t, got)

	history, err := s.History().ListByExpense(ctx, "x")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStore_WithTransactionNests(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.WithTransaction(ctx, func(outer context.Context) error {
		return s.WithTransaction(outer, func(inner context.Context) error {
			return s.Companies().Create(inner, &entity.Company{ID: "c9", DefaultCurrency: "EUR"})
		})
	})
	require.NoError(t, err)

	got, err := s.Companies().GetByID(ctx, "c9")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestWorkflowRuleRepository_OneRulePerCompany(t *testing.T) {
	s := NewStore()
	seed(t, s)
	ctx := context.Background()

	first := &entity.WorkflowRule{CompanyID: "c1", Name: "Default", Config: entity.RuleConfig{AutoApproveCategories: []string{"Meals"}}}
	require.NoError(t, s.Rules().Save(ctx, first))
	first.Config.AutoApproveCategories[0] = "mutated"

	got, err := s.Rules().GetByCompany(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Meals"}, got.Config.AutoApproveCategories)

	require.NoError(t, s.Rules().Save(ctx, &entity.WorkflowRule{CompanyID: "c1", Name: "Other"}))
	got, err = s.Rules().GetByCompany(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Other", got.Name)
	assert.Empty(t, got.Config.AutoApproveCategories)
	assert.NotEqual(t, first.ID, got.ID)
}
