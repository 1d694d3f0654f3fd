// Package memory is a process-local adapter for every repository port.
// Records are copied in and out so callers never share state with the store.
package memory

import (
	"context"
	"sync"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

type txMarker struct{}

// seq records insertion order for tie-breaks
type (
	companyRecord struct {
		seq     int64
		company entity.Company
	}
	userRecord struct {
		seq  int64
		user entity.User
	}
	expenseRecord struct {
		seq     int64
		expense entity.Expense
	}
	historyRecord struct {
		seq     int64
		history entity.ApprovalHistory
	}
	ruleRecord struct {
		rule entity.WorkflowRule
	}
)

// Store holds all collections behind one lock.
// txMu serializes transactions with each other and with standalone writes.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	seq  int64
	data collections
}

type collections struct {
	companies map[string]companyRecord
	users     map[string]userRecord
	expenses  map[string]expenseRecord
	history   map[string]historyRecord
	rules     map[string]ruleRecord // keyed by company id
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{data: newCollections()}
}

func newCollections() collections {
	return collections{
		companies: make(map[string]companyRecord),
		users:     make(map[string]userRecord),
		expenses:  make(map[string]expenseRecord),
		history:   make(map[string]historyRecord),
		rules:     make(map[string]ruleRecord),
	}
}

func (c collections) clone() collections {
	out := newCollections()
	for k, v := range c.companies {
		out.companies[k] = v
	}
	for k, v := range c.users {
		out.users[k] = v
	}
	for k, v := range c.expenses {
		out.expenses[k] = v
	}
	for k, v := range c.history {
		out.history[k] = v
	}
	for k, v := range c.rules {
		out.rules[k] = v
	}
	return out
}

// WithTransaction runs fn while holding the transaction lock.
// When fn fails every write made through the store during fn is undone.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTransaction(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			s.data = snapshot
			s.mu.Unlock()
		}
	}()

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		return err
	}
	committed = true
	return nil
}

func inTransaction(ctx context.Context) bool {
	v, _ := ctx.Value(txMarker{}).(bool)
	return v
}

// write applies fn under the data lock; outside a transaction it also takes txMu
func (s *Store) write(ctx context.Context, fn func(c *collections, next func() int64) error) error {
	if !inTransaction(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data, s.nextSeq)
}

func (s *Store) read(fn func(c *collections)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}
