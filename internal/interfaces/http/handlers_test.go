package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/application/workflow"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/auth"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/memory"
	"github.com/garyjia/expense-approvals/internal/infrastructure/report"
	"github.com/garyjia/expense-approvals/internal/infrastructure/storage"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type staticCountries struct {
	items []entity.Country
}

func (s *staticCountries) List(context.Context) ([]entity.Country, error) { return s.items, nil }
func (s *staticCountries) Refresh(context.Context) error                  { return nil }

type testEnv struct {
	store  *memory.Store
	router *gin.Engine
}

const (
	adminToken    = "admin-token"
	managerToken  = "manager-token"
	employeeToken = "employee-token"
	outsiderToken = "outsider-token"
)

func newTestEnv(t *testing.T, mutate func(*ServerConfig, *Services)) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Companies().Create(ctx, &entity.Company{ID: "company-1", Name: "Acme", CountryCode: "US", DefaultCurrency: "USD"}))
	require.NoError(t, store.Companies().Create(ctx, &entity.Company{ID: "company-2", Name: "Globex", CountryCode: "DE", DefaultCurrency: "EUR"}))
	managerID := "manager-1"
	for _, u := range []*entity.User{
		{ID: "admin-1", CompanyID: "company-1", Name: "Ada Admin", Email: "ada@acme.test", Role: entity.RoleAdmin},
		{ID: "manager-1", CompanyID: "company-1", Name: "Max Manager", Email: "max@acme.test", Role: entity.RoleManager},
		{ID: "employee-1", CompanyID: "company-1", Name: "Eve Employee", Email: "eve@acme.test", Role: entity.RoleEmployee, ManagerID: &managerID},
		{ID: "employee-2", CompanyID: "company-1", Name: "Carl Colleague", Email: "carl@acme.test", Role: entity.RoleEmployee, ManagerID: &managerID},
		{ID: "outsider-1", CompanyID: "company-2", Name: "Otto Outsider", Email: "otto@globex.test", Role: entity.RoleAdmin},
	} {
		require.NoError(t, store.Users().Create(ctx, u))
	}

	provider := auth.NewStaticTokenProvider(map[string]string{
		adminToken:    "admin-1",
		managerToken:  "manager-1",
		employeeToken: "employee-1",
		outsiderToken: "outsider-1",
	}, zap.NewNop())

	rules := service.NewRuleService(store.Companies(), store.Rules(), store, nil)
	engine := workflow.NewEngine(store.Expenses(), store.History(), store)
	services := Services{
		Expenses: service.NewExpenseService(service.ExpenseDeps{
			CompanyRepo: store.Companies(),
			UserRepo:    store.Users(),
			ExpenseRepo: store.Expenses(),
			HistoryRepo: store.History(),
			Rules:       rules,
			Engine:      engine,
		}),
		Approvals: service.NewApprovalService(store.Users(), store.Expenses(), nil),
		Rules:     rules,
		Users:     service.NewUserService(store.Companies(), store.Users(), store, nil),
		Auth:      service.NewAuthService(provider, store.Users(), nil, nil),
		Receipts: service.NewReceiptService(service.ReceiptDeps{
			CompanyRepo: store.Companies(),
			ExpenseRepo: store.Expenses(),
			Storage:     storage.NewLocalFileStorage(t.TempDir(), zap.NewNop()),
			MaxBytes:    1024,
		}),
		Reports: service.NewReportService(store.Companies(), store.Users(), store.Expenses(), report.NewExcelWriter(zap.NewNop()), nil),
		Demo: service.NewDemoService(service.DemoDeps{
			CompanyRepo: store.Companies(),
			UserRepo:    store.Users(),
			ExpenseRepo: store.Expenses(),
			HistoryRepo: store.History(),
			RuleRepo:    store.Rules(),
			TxManager:   store,
		}),
		Countries: &staticCountries{items: []entity.Country{{Name: "Germany", Code: "DE"}}},
	}

	config := DefaultServerConfig()
	config.Mode = gin.TestMode
	config.MaxUploadBytes = 1024
	if mutate != nil {
		mutate(&config, &services)
	}

	return &testEnv{store: store, router: NewServer(config, services, nopLogger{}).Router()}
}

func withAuth(config *ServerConfig, _ *Services) {
	config.AuthEnabled = true
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func expenseBody(userID, category string, amount float64) map[string]interface{} {
	return map[string]interface{}{
		"companyId":   "company-1",
		"userId":      userID,
		"description": category + " expense",
		"category":    category,
		"amount":      amount,
		"currency":    "EUR",
		"vendor":      "Vendor",
		"expenseDate": "2025-10-01",
	}
}

func (e *testEnv) createExpense(t *testing.T, token, userID, category string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/expenses", token, expenseBody(userID, category, 50))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["expense"].(map[string]interface{})["id"].(string)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	degraded := newTestEnv(t, func(_ *ServerConfig, s *Services) {
		s.Health = func(context.Context) (bool, map[string]string) {
			return false, map[string]string{"database": "unreachable"}
		}
	})
	rec = degraded.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "unreachable", body["components"].(map[string]interface{})["database"])
}

func TestCreateAndListExpenses(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/expenses", "", expenseBody("employee-1", "Travel", 50))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	expense := decode(t, rec)["expense"].(map[string]interface{})
	assert.Equal(t, "pending", expense["status"])
	assert.Equal(t, 55.0, expense["convertedAmount"])
	assert.Equal(t, "USD", expense["convertedCurrency"])

	rec = env.do(t, http.MethodGet, "/api/expenses?companyId=company-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 1)

	rec = env.do(t, http.MethodGet, "/api/expenses?companyId=company-1&status=approved", "", nil)
	assert.Empty(t, decode(t, rec)["items"])

	rec = env.do(t, http.MethodGet, "/api/expenses", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/expenses/"+expense["id"].(string), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode(t, rec)
	assert.Len(t, detail["history"], 1)

	rec = env.do(t, http.MethodGet, "/api/expenses/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Expense not found"}`, rec.Body.String())
}

func TestCreateExpense_Validation(t *testing.T) {
	env := newTestEnv(t, nil)

	withField := func(key string, value interface{}) map[string]interface{} {
		body := expenseBody("employee-1", "Travel", 50)
		if value == nil {
			delete(body, key)
		} else {
			body[key] = value
		}
		return body
	}

	tests := []struct {
		name    string
		body    interface{}
		status  int
		message string
	}{
		{"malformed json", `{"companyId":`, http.StatusBadRequest, "Invalid request body"},
		{"missing company", withField("companyId", nil), http.StatusBadRequest, "companyId is required"},
		{"negative amount", withField("amount", -5), http.StatusBadRequest, "amount must be greater than 0"},
		{"unknown currency", withField("currency", "zzq"), http.StatusBadRequest, "currency must be an ISO 4217 currency code"},
		{"missing currency", withField("currency", nil), http.StatusBadRequest, "currency is required"},
		{"currency not a string", withField("currency", 978), http.StatusBadRequest, "Invalid request body"},
		{"bad date", withField("expenseDate", "01/10/2025"), http.StatusBadRequest, "expenseDate must be a date formatted as 2006-01-02"},
		{"unknown company", withField("companyId", "nope"), http.StatusNotFound, "Company not found"},
		{"user of another company", withField("userId", "outsider-1"), http.StatusNotFound, "User not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/expenses", "", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec)["error"])
		})
	}
}

func TestCreateExpense_LenientFields(t *testing.T) {
	env := newTestEnv(t, nil)

	body := expenseBody("employee-1", "Travel", 50)
	body["currency"] = " eur "
	delete(body, "category")
	delete(body, "expenseDate")

	rec := env.do(t, http.MethodPost, "/api/expenses", "", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	expense := decode(t, rec)["expense"].(map[string]interface{})
	assert.Equal(t, "EUR", expense["currency"])
	assert.Equal(t, 55.0, expense["convertedAmount"])
	assert.Equal(t, "pending", expense["status"])
}

func TestApproveAndReject(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.createExpense(t, "", "employee-1", "Travel")
	second := env.createExpense(t, "", "employee-1", "Meals")

	rec := env.do(t, http.MethodPost, "/api/approvals/"+first+"/approve", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/approvals/"+first+"/reject", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Expense has already been decided", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/approvals/"+second+"/reject", "",
		map[string]string{"comment": "missing receipt", "actorUserId": "manager-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	history, err := env.store.History().ListByExpense(context.Background(), second)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entity.ActionReject, history[1].Action)
	assert.Equal(t, "manager-1", history[1].ActorUserID)
	assert.Equal(t, "missing receipt", history[1].Comment)

	rec = env.do(t, http.MethodPost, "/api/approvals/missing/approve", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApprovalQueue(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createExpense(t, "", "employee-1", "Travel")
	env.createExpense(t, "", "employee-2", "Meals")

	rec := env.do(t, http.MethodGet, "/api/approvals/queue", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/approvals/queue?managerId=manager-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "Eve Employee", items[0].(map[string]interface{})["employeeName"])
	assert.Equal(t, "Carl Colleague", items[1].(map[string]interface{})["employeeName"])
}

func TestUsersEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/users?companyId=company-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode(t, rec)["items"].([]interface{})
	assert.Len(t, users, 4)

	rec = env.do(t, http.MethodGet, "/api/users?companyId=company-1&lookup=EVE@acme.test", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode(t, rec)
	assert.Equal(t, "employee-1", profile["user"].(map[string]interface{})["id"])
	assert.Equal(t, "Acme", profile["company"].(map[string]interface{})["name"])

	rec = env.do(t, http.MethodPost, "/api/users", "", map[string]interface{}{
		"companyId": "company-1", "name": "Nia New", "email": "nia@acme.test", "role": "employee", "managerId": "manager-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "manager-1", decode(t, rec)["user"].(map[string]interface{})["managerId"])

	rec = env.do(t, http.MethodPost, "/api/users", "", map[string]interface{}{
		"companyId": "company-1", "name": "Nia Again", "email": "NIA@acme.test", "role": "employee",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/users", "", map[string]interface{}{
		"companyId": "company-1", "name": "Rex", "email": "rex@acme.test", "role": "owner",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "role must be one of: admin, manager, employee", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/users", "", map[string]interface{}{
		"__bootstrap": true, "companyName": "Initech", "countryCode": "GB", "defaultCurrency": "GBP",
		"name": "Bill", "email": "bill@initech.test",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "GBP", created["company"].(map[string]interface{})["defaultCurrency"])
	assert.Equal(t, "admin", created["user"].(map[string]interface{})["role"])
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/signup", "", map[string]string{
		"companyName": "Hooli", "country": "Japan", "name": "Gavin", "email": "gavin@hooli.test",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "JPY", decode(t, rec)["company"].(map[string]interface{})["defaultCurrency"])

	rec = env.do(t, http.MethodPost, "/api/signup", "", map[string]string{"companyName": "Hooli", "name": "Gavin", "email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email must be a valid email address", decode(t, rec)["error"])
}

func TestWorkflows(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/workflows", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"item":null}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/workflows", "", map[string]interface{}{
		"companyId": "company-1",
		"percent":   60,
		"config":    map[string]interface{}{"autoApproveCategories": []string{"meals"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item := decode(t, rec)["item"].(map[string]interface{})
	assert.Equal(t, "Default", item["name"])
	assert.Equal(t, 60.0, item["minimumApprovalPercent"])

	rec = env.do(t, http.MethodGet, "/api/workflows?companyId=company-1", "", nil)
	assert.Equal(t, item["id"], decode(t, rec)["item"].(map[string]interface{})["id"])

	rec = env.do(t, http.MethodPost, "/api/expenses", "", expenseBody("employee-1", "Meals", 20))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode(t, rec)["expense"].(map[string]interface{})["status"])

	rec = env.do(t, http.MethodPost, "/api/workflows", "", map[string]interface{}{"companyId": "company-1", "minimumApprovalPercent": 150})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "minimumApprovalPercent must be at most 100", decode(t, rec)["error"])
}

func TestCountriesAndRecover(t *testing.T) {
	env := newTestEnv(t, withAuth)

	rec := env.do(t, http.MethodGet, "/api/countries", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Germany", decode(t, rec)["items"].([]interface{})[0].(map[string]interface{})["name"])

	rec = env.do(t, http.MethodPost, "/api/auth/recover", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Email is required"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/auth/recover", "", map[string]string{"email": "eve@acme.test"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestPublicRoutesIgnoreBadTokens(t *testing.T) {
	env := newTestEnv(t, withAuth)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"countries", http.MethodGet, "/api/countries", nil},
		{"recover", http.MethodPost, "/api/auth/recover", map[string]string{"email": "eve@acme.test"}},
		{"signup", http.MethodPost, "/api/signup", map[string]string{"companyName": "Initech", "name": "Bill", "email": "bill@initech.test"}},
		{"demo init", http.MethodPost, "/api/demo/init", nil},
		{"bootstrap", http.MethodPost, "/api/users", map[string]interface{}{
			"__bootstrap": true, "companyName": "Vandelay", "name": "Art", "email": "art@vandelay.test",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, "stale-token", tt.body)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}

	// the same token still fails where a caller is needed
	rec := env.do(t, http.MethodGet, "/api/profile", "stale-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/users", "stale-token", map[string]interface{}{
		"companyId": "company-1", "name": "Zed", "email": "zed@acme.test", "role": "employee",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthorization(t *testing.T) {
	env := newTestEnv(t, withAuth)
	own := env.createExpense(t, employeeToken, "employee-1", "Travel")
	env.createExpense(t, adminToken, "employee-2", "Meals")

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/expenses?companyId=company-1", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/expenses", "forged", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("employee sees only own expenses", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/expenses", employeeToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		items := decode(t, rec)["items"].([]interface{})
		require.Len(t, items, 1)
		assert.Equal(t, own, items[0].(map[string]interface{})["id"])
	})

	t.Run("manager sees the company", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/expenses", managerToken, nil)
		assert.Len(t, decode(t, rec)["items"], 2)
	})

	t.Run("employee cannot submit for a colleague", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/expenses", employeeToken, expenseBody("employee-2", "Travel", 10))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("cross company access", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/expenses?companyId=company-1", outsiderToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = env.do(t, http.MethodPost, "/api/approvals/"+own+"/approve", outsiderToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("employee cannot approve", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/approvals/"+own+"/approve", employeeToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = env.do(t, http.MethodGet, "/api/approvals/queue", employeeToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("manager queue defaults to caller", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/approvals/queue", managerToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode(t, rec)["items"], 2)
		rec = env.do(t, http.MethodGet, "/api/approvals/queue?managerId=admin-1", managerToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = env.do(t, http.MethodGet, "/api/approvals/queue?managerId=manager-1", adminToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("manager approval records the caller", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/approvals/"+own+"/approve", managerToken, map[string]string{"actorUserId": "admin-1"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		history, err := env.store.History().ListByExpense(context.Background(), own)
		require.NoError(t, err)
		assert.Equal(t, "manager-1", history[len(history)-1].ActorUserID)
	})

	t.Run("admin only actions", func(t *testing.T) {
		rule := map[string]interface{}{"companyId": "company-1", "config": map[string]interface{}{}}
		rec := env.do(t, http.MethodPost, "/api/workflows", managerToken, rule)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = env.do(t, http.MethodPost, "/api/workflows", adminToken, rule)
		assert.Equal(t, http.StatusOK, rec.Code)

		user := map[string]interface{}{"companyId": "company-1", "name": "Zed", "email": "zed@acme.test", "role": "employee"}
		rec = env.do(t, http.MethodPost, "/api/users", employeeToken, user)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = env.do(t, http.MethodPost, "/api/users", outsiderToken, user)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bootstrap stays public", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/users", "", map[string]interface{}{
			"__bootstrap": true, "companyName": "Umbrella", "name": "Al", "email": "al@umbrella.test",
		})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("profile", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/profile", employeeToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "employee-1", decode(t, rec)["user"].(map[string]interface{})["id"])
	})
}

func TestProfileWithoutAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/profile", managerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme", decode(t, rec)["company"].(map[string]interface{})["name"])
}

func multipartRequest(t *testing.T, companyID, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if companyID != "" {
		require.NoError(t, writer.WriteField("companyId", companyID))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/receipts", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestReceipts(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, multipartRequest(t, "company-1", "taxi receipt.txt", []byte("Taxi 12.00 EUR")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	name := decode(t, rec)["receiptName"].(string)
	assert.True(t, strings.HasSuffix(name, "-taxi_receipt.txt"), name)

	rec = env.do(t, http.MethodGet, "/api/receipts/company-1/"+name, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Taxi 12.00 EUR", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = env.do(t, http.MethodGet, "/api/receipts/company-2/"+name, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	tests := []struct {
		name    string
		req     *http.Request
		message string
	}{
		{"missing file", multipartRequest(t, "company-1", "", nil), "file is required"},
		{"missing company", multipartRequest(t, "", "a.txt", []byte("x")), "companyId is required"},
		{"too large", multipartRequest(t, "company-1", "big.txt", bytes.Repeat([]byte("x"), 2048)), "Receipt exceeds the 1024 byte limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, decode(t, rec)["error"])
		})
	}
}

func TestExportExpenses(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createExpense(t, "", "employee-1", "Travel")

	rec := env.do(t, http.MethodGet, "/api/reports/expenses?companyId=company-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "expenses-company-1-")
	assert.Equal(t, "PK", rec.Body.String()[:2], "xlsx is a zip archive")

	rec = env.do(t, http.MethodGet, "/api/reports/expenses", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "companyId is required", decode(t, rec)["error"])
}

func TestInitDemo(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/api/demo/init", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Demo data initialized", body["message"])
	assert.Equal(t, 3.0, body["sampleExpensesCreated"])

	rec = env.do(t, http.MethodPost, "/api/demo/init", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Demo data already exists", decode(t, rec)["message"])
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, func(c *ServerConfig, _ *Services) {
		c.AllowedOrigins = []string{"https://app.example.test"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
	req.Header.Set("Origin", "https://app.example.test")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.test")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
