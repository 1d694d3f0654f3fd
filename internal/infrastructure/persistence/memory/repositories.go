package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/google/uuid"
)

// CompanyRepository implements port.CompanyRepository on a Store
type CompanyRepository struct{ store *Store }

// UserRepository implements port.UserRepository on a Store
type UserRepository struct{ store *Store }

// ExpenseRepository implements port.ExpenseRepository on a Store
type ExpenseRepository struct{ store *Store }

// HistoryRepository implements port.HistoryRepository on a Store
type HistoryRepository struct{ store *Store }

// WorkflowRuleRepository implements port.WorkflowRuleRepository on a Store
type WorkflowRuleRepository struct{ store *Store }

// Companies returns the company repository view of the store
func (s *Store) Companies() port.CompanyRepository { return &CompanyRepository{store: s} }

// Users returns the user repository view of the store
func (s *Store) Users() port.UserRepository { return &UserRepository{store: s} }

// Expenses returns the expense repository view of the store
func (s *Store) Expenses() port.ExpenseRepository { return &ExpenseRepository{store: s} }

// History returns the approval history repository view of the store
func (s *Store) History() port.HistoryRepository { return &HistoryRepository{store: s} }

// Rules returns the workflow rule repository view of the store
func (s *Store) Rules() port.WorkflowRuleRepository { return &WorkflowRuleRepository{store: s} }

func stampID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func stampTime(t *time.Time) {
	if t.IsZero() {
		*t = time.Now().UTC()
	}
}

func (r *CompanyRepository) Create(ctx context.Context, company *entity.Company) error {
	stampID(&company.ID)
	stampTime(&company.CreatedAt)

	return r.store.write(ctx, func(c *collections, next func() int64) error {
		if _, exists := c.companies[company.ID]; exists {
			return fmt.Errorf("company %s already exists", company.ID)
		}
		c.companies[company.ID] = companyRecord{seq: next(), company: *company}
		return nil
	})
}

func (r *CompanyRepository) GetByID(_ context.Context, id string) (*entity.Company, error) {
	var out *entity.Company
	r.store.read(func(c *collections) {
		if rec, ok := c.companies[id]; ok {
			company := rec.company
			out = &company
		}
	})
	return out, nil
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	stampID(&user.ID)
	stampTime(&user.CreatedAt)

	return r.store.write(ctx, func(c *collections, next func() int64) error {
		if _, exists := c.users[user.ID]; exists {
			return fmt.Errorf("user %s already exists", user.ID)
		}
		if _, ok := c.companies[user.CompanyID]; !ok {
			return fmt.Errorf("company %s does not exist", user.CompanyID)
		}
		for _, rec := range c.users {
			if rec.user.CompanyID == user.CompanyID && strings.EqualFold(rec.user.Email, user.Email) {
				return fmt.Errorf("email %s already used in company %s", user.Email, user.CompanyID)
			}
		}
		c.users[user.ID] = userRecord{seq: next(), user: cloneUser(*user)}
		return nil
	})
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*entity.User, error) {
	var out *entity.User
	r.store.read(func(c *collections) {
		if rec, ok := c.users[id]; ok {
			user := cloneUser(rec.user)
			out = &user
		}
	})
	return out, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, companyID, email string) (*entity.User, error) {
	var out *entity.User
	r.store.read(func(c *collections) {
		for _, rec := range c.users {
			if rec.user.CompanyID == companyID && strings.EqualFold(rec.user.Email, email) {
				user := cloneUser(rec.user)
				out = &user
				return
			}
		}
	})
	return out, nil
}

func (r *UserRepository) ListByEmail(_ context.Context, email string) ([]*entity.User, error) {
	return r.filter(func(u *entity.User) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (r *UserRepository) ListByCompany(_ context.Context, companyID string) ([]*entity.User, error) {
	return r.filter(func(u *entity.User) bool { return u.CompanyID == companyID }), nil
}

func (r *UserRepository) ListByManager(_ context.Context, managerID string) ([]*entity.User, error) {
	return r.filter(func(u *entity.User) bool { return u.ReportsTo(managerID) }), nil
}

func (r *UserRepository) filter(match func(*entity.User) bool) []*entity.User {
	var recs []userRecord
	r.store.read(func(c *collections) {
		for _, rec := range c.users {
			if match(&rec.user) {
				recs = append(recs, rec)
			}
		}
	})

	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	users := make([]*entity.User, 0, len(recs))
	for _, rec := range recs {
		user := cloneUser(rec.user)
		users = append(users, &user)
	}
	return users
}

func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	stampID(&expense.ID)
	stampTime(&expense.CreatedAt)

	return r.store.write(ctx, func(c *collections, next func() int64) error {
		if _, exists := c.expenses[expense.ID]; exists {
			return fmt.Errorf("expense %s already exists", expense.ID)
		}
		c.expenses[expense.ID] = expenseRecord{seq: next(), expense: cloneExpense(*expense)}
		return nil
	})
}

func (r *ExpenseRepository) GetByID(_ context.Context, id string) (*entity.Expense, error) {
	var out *entity.Expense
	r.store.read(func(c *collections) {
		if rec, ok := c.expenses[id]; ok {
			expense := cloneExpense(rec.expense)
			out = &expense
		}
	})
	return out, nil
}

// List orders newest first; later insertions win timestamp ties
func (r *ExpenseRepository) List(_ context.Context, companyID string, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	recs := r.filter(func(e *entity.Expense) bool {
		if e.CompanyID != companyID {
			return false
		}
		if filter.UserID != "" && e.UserID != filter.UserID {
			return false
		}
		return filter.Status == "" || e.Status == filter.Status
	})

	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.expense.CreatedAt.Equal(b.expense.CreatedAt) {
			return a.expense.CreatedAt.After(b.expense.CreatedAt)
		}
		return a.seq > b.seq
	})

	return expensesOf(recs), nil
}

func (r *ExpenseRepository) ListPendingByUsers(_ context.Context, userIDs []string) ([]*entity.Expense, error) {
	wanted := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = struct{}{}
	}

	recs := r.filter(func(e *entity.Expense) bool {
		_, ok := wanted[e.UserID]
		return ok && e.Status == entity.StatusPending
	})
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	return expensesOf(recs), nil
}

func (r *ExpenseRepository) UpdateStatus(ctx context.Context, id string, change port.StatusChange) (bool, error) {
	matched := false
	err := r.store.write(ctx, func(c *collections, _ func() int64) error {
		rec, ok := c.expenses[id]
		if !ok || rec.expense.Status != change.From {
			return nil
		}

		decidedBy := change.DecidedBy
		decidedAt := change.DecidedAt.UTC()
		rec.expense.Status = change.To
		rec.expense.DecidedBy = &decidedBy
		rec.expense.DecidedAt = &decidedAt
		c.expenses[id] = rec
		matched = true
		return nil
	})
	return matched, err
}

func (r *ExpenseRepository) filter(match func(*entity.Expense) bool) []expenseRecord {
	var recs []expenseRecord
	r.store.read(func(c *collections) {
		for _, rec := range c.expenses {
			if match(&rec.expense) {
				recs = append(recs, rec)
			}
		}
	})
	return recs
}

func expensesOf(recs []expenseRecord) []*entity.Expense {
	expenses := make([]*entity.Expense, 0, len(recs))
	for _, rec := range recs {
		expense := cloneExpense(rec.expense)
		expenses = append(expenses, &expense)
	}
	return expenses
}

func (r *HistoryRepository) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	stampID(&history.ID)
	stampTime(&history.CreatedAt)

	return r.store.write(ctx, func(c *collections, next func() int64) error {
		if _, ok := c.expenses[history.ExpenseID]; !ok {
			return fmt.Errorf("expense %s does not exist", history.ExpenseID)
		}
		c.history[history.ID] = historyRecord{seq: next(), history: *history}
		return nil
	})
}

func (r *HistoryRepository) ListByExpense(_ context.Context, expenseID string) ([]*entity.ApprovalHistory, error) {
	var recs []historyRecord
	r.store.read(func(c *collections) {
		for _, rec := range c.history {
			if rec.history.ExpenseID == expenseID {
				recs = append(recs, rec)
			}
		}
	})

	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	out := make([]*entity.ApprovalHistory, 0, len(recs))
	for _, rec := range recs {
		h := rec.history
		out = append(out, &h)
	}
	return out, nil
}

func (r *WorkflowRuleRepository) GetByCompany(_ context.Context, companyID string) (*entity.WorkflowRule, error) {
	var out *entity.WorkflowRule
	r.store.read(func(c *collections) {
		if rec, ok := c.rules[companyID]; ok {
			rule := cloneRule(rec.rule)
			out = &rule
		}
	})
	return out, nil
}

func (r *WorkflowRuleRepository) Save(ctx context.Context, rule *entity.WorkflowRule) error {
	stampID(&rule.ID)
	stampTime(&rule.CreatedAt)

	return r.store.write(ctx, func(c *collections, _ func() int64) error {
		c.rules[rule.CompanyID] = ruleRecord{rule: cloneRule(*rule)}
		return nil
	})
}

func cloneUser(u entity.User) entity.User {
	if u.ManagerID != nil {
		id := *u.ManagerID
		u.ManagerID = &id
	}
	return u
}

func cloneExpense(e entity.Expense) entity.Expense {
	if e.DecidedAt != nil {
		at := *e.DecidedAt
		e.DecidedAt = &at
	}
	if e.DecidedBy != nil {
		by := *e.DecidedBy
		e.DecidedBy = &by
	}
	return e
}

func cloneRule(r entity.WorkflowRule) entity.WorkflowRule {
	if r.Config.AutoApproveCategories != nil {
		r.Config.AutoApproveCategories = append([]string(nil), r.Config.AutoApproveCategories...)
	}
	return r
}

var (
	_ port.CompanyRepository      = (*CompanyRepository)(nil)
	_ port.UserRepository         = (*UserRepository)(nil)
	_ port.ExpenseRepository      = (*ExpenseRepository)(nil)
	_ port.HistoryRepository      = (*HistoryRepository)(nil)
	_ port.WorkflowRuleRepository = (*WorkflowRuleRepository)(nil)
	_ port.TransactionManager     = (*Store)(nil)
)
