package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/garyjia/expense-approvals/internal/application/dispatcher"
	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/application/workflow"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/domain/event"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/require"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

// mockDispatcher records events instead of running handlers
type mockDispatcher struct {
	mu          sync.Mutex
	events      []*event.Event
	subscribers map[event.Type][]string
}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, _ dispatcher.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribers == nil {
		m.subscribers = make(map[event.Type][]string)
	}
	m.subscribers[eventType] = append(m.subscribers[eventType], name)
}

func (m *mockDispatcher) Unsubscribe(event.Type, string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(_ context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(event.Type) []dispatcher.HandlerInfo { return nil }
func (m *mockDispatcher) Wait()                                            {}
func (m *mockDispatcher) Close() error                                     { return nil }

func (m *mockDispatcher) ofType(t event.Type) []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type sentMessage struct {
	email   string
	message string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockNotifier) Notify(_ context.Context, email, message string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{email: email, message: message})
	return nil
}

type mockIdentityProvider struct {
	tokens map[string]string
	err    error
}

func (m *mockIdentityProvider) Resolve(_ context.Context, token string) (*port.Identity, error) {
	if m.err != nil {
		return nil, m.err
	}
	userID, ok := m.tokens[token]
	if !ok {
		return nil, port.ErrInvalidToken
	}
	return &port.Identity{UserID: userID}, nil
}

type mockStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (m *mockStorage) Save(_ context.Context, path string, content []byte) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[path] = content
	return nil
}

func (m *mockStorage) Read(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return content, nil
}

func (m *mockStorage) Exists(_ context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *mockStorage) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *mockStorage) GetFullPath(relativePath string) string {
	return "/data/" + relativePath
}

type mockExtractor struct {
	text  string
	err   error
	paths []string
}

func (m *mockExtractor) ExtractText(_ context.Context, path string) (string, error) {
	m.paths = append(m.paths, path)
	return m.text, m.err
}

type mockSuggester struct {
	suggestFunc func(ctx context.Context, text string, categories []string) (*port.CategorySuggestion, error)
	lastText    string
	lastCats    []string
}

func (m *mockSuggester) SuggestCategory(ctx context.Context, text string, categories []string) (*port.CategorySuggestion, error) {
	m.lastText = text
	m.lastCats = categories
	if m.suggestFunc != nil {
		return m.suggestFunc(ctx, text, categories)
	}
	return &port.CategorySuggestion{Category: categories[0], Confidence: 0.9}, nil
}

type mockReportWriter struct {
	title string
	rows  []port.ReportRow
	err   error
}

func (m *mockReportWriter) WriteExpenseReport(_ context.Context, w io.Writer, title string, rows []port.ReportRow) error {
	if m.err != nil {
		return m.err
	}
	m.title = title
	m.rows = rows
	_, err := io.WriteString(w, "report")
	return err
}

func (m *mockReportWriter) ContentType() string   { return "application/test" }
func (m *mockReportWriter) FileExtension() string { return ".test" }

// fixture is a memory-backed tenant: one company with an admin, a manager and
// two employees reporting to the manager
type fixture struct {
	store      *memory.Store
	dispatcher *mockDispatcher
	logger     *mockLogger
	company    *entity.Company
	admin      *entity.User
	manager    *entity.User
	employee   *entity.User
	colleague  *entity.User
	rules      RuleService
	expenses   ExpenseService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:      memory.NewStore(),
		dispatcher: &mockDispatcher{},
		logger:     &mockLogger{},
	}

	f.company = &entity.Company{ID: "company-1", Name: "Acme", CountryCode: "US", DefaultCurrency: "USD"}
	require.NoError(t, f.store.Companies().Create(ctx, f.company))

	f.admin = f.addUser(t, "admin-1", "Ada Admin", "ada@acme.test", entity.RoleAdmin, nil)
	f.manager = f.addUser(t, "manager-1", "Max Manager", "max@acme.test", entity.RoleManager, nil)
	f.employee = f.addUser(t, "employee-1", "Eve Employee", "eve@acme.test", entity.RoleEmployee, &f.manager.ID)
	f.colleague = f.addUser(t, "employee-2", "Carl Colleague", "carl@acme.test", entity.RoleEmployee, &f.manager.ID)

	f.rules = NewRuleService(f.store.Companies(), f.store.Rules(), f.store, f.logger)
	engine := workflow.NewEngine(f.store.Expenses(), f.store.History(), f.store, workflow.WithDispatcher(f.dispatcher))
	f.expenses = NewExpenseService(ExpenseDeps{
		CompanyRepo: f.store.Companies(),
		UserRepo:    f.store.Users(),
		ExpenseRepo: f.store.Expenses(),
		HistoryRepo: f.store.History(),
		Rules:       f.rules,
		Engine:      engine,
		Logger:      f.logger,
	})
	return f
}

func (f *fixture) addUser(t *testing.T, id, name, email string, role entity.Role, managerID *string) *entity.User {
	t.Helper()
	user := &entity.User{ID: id, CompanyID: "company-1", Name: name, Email: email, Role: role, ManagerID: managerID}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return user
}

func (f *fixture) submit(t *testing.T, user *entity.User, category string, amount float64) *entity.Expense {
	t.Helper()
	expense, err := f.expenses.Create(context.Background(), CreateExpenseInput{
		CompanyID:   f.company.ID,
		UserID:      user.ID,
		Description: category + " expense",
		Category:    category,
		Amount:      amount,
		Currency:    "USD",
		Vendor:      "Vendor",
		ExpenseDate: "2025-10-01",
	})
	require.NoError(t, err)
	return expense
}
