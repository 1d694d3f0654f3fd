package container

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/notify"
)

func testConfig(t *testing.T, driver string) *Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Database.Driver = driver
	cfg.Database.Path = filepath.Join(dir, "expenses.db")
	cfg.Storage.BaseDir = filepath.Join(dir, "files")
	cfg.Countries.RefreshInterval = 0
	cfg.Demo = DemoConfig{AdminToken: "demo-admin", ManagerToken: "demo-manager", EmployeeToken: "demo-employee"}
	cfg.Auth.Tokens = map[string]string{"ops-token": "ops-1"}
	return cfg
}

func startContainer(t *testing.T, cfg *Config) *Container {
	t.Helper()
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	return c
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Database.Driver = "postgres"
	_, err = NewContainer(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")

	cfg = DefaultConfig()
	cfg.Lark.Enabled = true
	_, err = NewContainer(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lark.app_id")
}

func TestContainer_MemoryLifecycle(t *testing.T) {
	c := startContainer(t, testConfig(t, DriverMemory))

	assert.True(t, c.Ready())
	require.NotNil(t, c.Services())
	require.NotNil(t, c.Repositories())
	assert.NotNil(t, c.Countries())
	assert.NotNil(t, c.Dispatcher())

	health := c.Health(context.Background())
	assert.True(t, health.Overall)
	assert.Equal(t, "memory", health.Components["database"].Message)
	assert.Equal(t, "disabled", health.Components["category_suggestions"].Message)

	ok, components := c.HealthCheck(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "ok: memory", components["database"])

	assert.Error(t, c.Start(context.Background()), "second start")

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(context.Background()), "start after close")
}

func TestContainer_SQLiteDemoRoundTrip(t *testing.T) {
	cfg := testConfig(t, DriverSQLite)
	c := startContainer(t, cfg)
	defer c.Close()

	ctx := context.Background()
	services := c.Services()

	result, err := services.Demo.InitDemo(ctx)
	require.NoError(t, err)
	require.NotNil(t, result.Company)
	assert.Positive(t, result.SampleExpensesCreated)

	// demo tokens resolve to the seeded users
	identity, err := services.Auth.Authenticate(ctx, "Bearer demo-manager")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleManager, identity.Role)
	assert.Equal(t, result.Company.ID, identity.CompanyID)

	again, err := services.Demo.InitDemo(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.SampleExpensesCreated)

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.Equal(t, "sqlite", health.Components["database"].Message)
}

func TestContainer_ReopenKeepsData(t *testing.T) {
	cfg := testConfig(t, DriverSQLite)
	ctx := context.Background()

	first := startContainer(t, cfg)
	_, err := first.Services().Demo.InitDemo(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// migrations are recorded, so a second start applies nothing and sees the data
	second := startContainer(t, cfg)
	defer second.Close()

	result, err := second.Services().Demo.InitDemo(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.SampleExpensesCreated)
}

func TestContainer_HealthBeforeStart(t *testing.T) {
	c, err := NewContainer(testConfig(t, DriverMemory), zap.NewNop())
	require.NoError(t, err)

	health := c.Health(context.Background())
	assert.False(t, health.Overall)
	assert.Equal(t, "not initialized", health.Components["database"].Message)
	assert.Nil(t, c.Countries())
}

func TestProvideNotifier_DisabledUsesLog(t *testing.T) {
	n, err := ProvideNotifier(&LarkConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &notify.LogNotifier{}, n)
}

func TestProvideCategorySuggester_NoKey(t *testing.T) {
	s, err := ProvideCategorySuggester(&OpenAIConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestProvideWorkers(t *testing.T) {
	cfg := testConfig(t, DriverMemory)
	countries := ProvideCountryDirectory(&cfg.Countries, zap.NewNop())

	assert.Empty(t, ProvideWorkers(&cfg.Countries, countries, zap.NewNop()).Running())

	cfg.Countries.RefreshInterval = 1
	m := ProvideWorkers(&cfg.Countries, countries, zap.NewNop())
	// registered, not yet started
	assert.False(t, m.IsRunning())
}

func TestDemoTokens(t *testing.T) {
	tokens := demoTokens(&DemoConfig{AdminToken: "a", EmployeeToken: "e"})
	assert.Equal(t, map[entity.Role]string{entity.RoleAdmin: "a", entity.RoleEmployee: "e"}, tokens)
	assert.Empty(t, demoTokens(nil))
}

func TestLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := NewLoggerAdapter(zap.New(core))

	log.Info("expense created", "expense_id", "exp-1", 42, "dropped", "amount", 12.5)
	log.Error("notify failed", "error", errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "exp-1", fields["expense_id"])
	assert.Equal(t, 12.5, fields["amount"])
	assert.NotContains(t, fields, "dropped")
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}
