package container

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approvals/internal/application/dispatcher"
	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/application/service"
	"github.com/garyjia/expense-approvals/internal/application/workflow"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"github.com/garyjia/expense-approvals/internal/infrastructure/auth"
	infraLark "github.com/garyjia/expense-approvals/internal/infrastructure/external/lark"
	"github.com/garyjia/expense-approvals/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-approvals/internal/infrastructure/external/restcountries"
	"github.com/garyjia/expense-approvals/internal/infrastructure/notify"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/memory"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-approvals/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approvals/internal/infrastructure/receipt"
	"github.com/garyjia/expense-approvals/internal/infrastructure/report"
	"github.com/garyjia/expense-approvals/internal/infrastructure/storage"
	"github.com/garyjia/expense-approvals/internal/infrastructure/worker"
	"github.com/garyjia/expense-approvals/migrations"
	"github.com/garyjia/expense-approvals/pkg/database"
)

// DatabaseBundle holds database-related components. Exactly one of SQL and Memory is set.
type DatabaseBundle struct {
	SQL       *database.DB
	Memory    *memory.Store
	TxManager port.TransactionManager
}

// ExternalBundle holds clients of external systems.
type ExternalBundle struct {
	Notifier  port.Notifier
	Suggester port.CategorySuggester
	Countries *restcountries.Client
	Identity  port.IdentityProvider
}

// StorageBundle holds file storage and document processing components.
type StorageBundle struct {
	FileStorage  port.FileStorage
	Extractor    port.ReceiptTextExtractor
	ReportWriter port.ReportWriter
}

// ProvideDatabase opens the configured store. The sqlite driver also applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == DriverMemory {
		store := memory.NewStore()
		return &DatabaseBundle{Memory: store, TxManager: store}, nil
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if _, err := database.NewMigrator(db, logger).RunMigrations(migrations.Files); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SQL:       db,
		TxManager: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates the repositories backed by the opened store.
func ProvideRepositories(db *DatabaseBundle, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database bundle is required")
	}

	if db.Memory != nil {
		return &RepositoryBundle{
			Company: db.Memory.Companies(),
			User:    db.Memory.Users(),
			Expense: db.Memory.Expenses(),
			History: db.Memory.History(),
			Rule:    db.Memory.Rules(),
		}, nil
	}
	if db.SQL == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	sqlDB := db.SQL.DB
	return &RepositoryBundle{
		Company: repository.NewCompanyRepository(sqlDB, logger),
		User:    repository.NewUserRepository(sqlDB, logger),
		Expense: repository.NewExpenseRepository(sqlDB, logger),
		History: repository.NewHistoryRepository(sqlDB, logger),
		Rule:    repository.NewWorkflowRuleRepository(sqlDB, logger),
	}, nil
}

// ProvideNotifier returns the Lark notifier when enabled, otherwise one that logs messages.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) (port.Notifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if !cfg.Enabled {
		logger.Info("Lark disabled, notifications are logged")
		return notify.NewLogNotifier(logger), nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)

	return infraLark.NewNotifier(client, logger, infraLark.WithRetry(cfg.RetryAttempts, cfg.RetryDelay)), nil
}

// ProvideCategorySuggester returns nil when no API key is configured.
func ProvideCategorySuggester(cfg *OpenAIConfig, logger *zap.Logger) (port.CategorySuggester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("openai config is required")
	}
	if cfg.APIKey == "" {
		logger.Info("OpenAI key not configured, category suggestions disabled")
		return nil, nil
	}

	var prompts *openai.PromptConfig
	if cfg.PromptsPath != "" {
		loaded, err := openai.LoadPrompts(cfg.PromptsPath)
		if err != nil {
			return nil, err
		}
		prompts = loaded
	}

	return openai.NewCategorizer(openai.Config{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	}, prompts, logger), nil
}

// ProvideCountryDirectory creates the cached restcountries client.
func ProvideCountryDirectory(cfg *CountriesConfig, logger *zap.Logger) *restcountries.Client {
	return restcountries.NewClient(restcountries.Config{
		URL:        cfg.URL,
		CacheTTL:   cfg.CacheTTL,
		Timeout:    cfg.Timeout,
		Attempts:   cfg.Attempts,
		RetryDelay: cfg.RetryDelay,
	}, logger)
}

// ProvideIdentityProvider builds the token table from the configured tokens plus the demo tokens.
func ProvideIdentityProvider(cfg *AuthConfig, demo *DemoConfig, logger *zap.Logger) port.IdentityProvider {
	tokens := make(map[string]string, len(cfg.Tokens)+3)
	for token, userID := range cfg.Tokens {
		tokens[token] = userID
	}
	for role, token := range demoTokens(demo) {
		tokens[token] = demoUserID(role)
	}

	provider := auth.NewStaticTokenProvider(tokens, logger)
	logger.Info("Identity provider configured", zap.Int("tokens", provider.Len()))
	return provider
}

// ProvideExternalClients creates every external client.
func ProvideExternalClients(cfg *Config, logger *zap.Logger) (*ExternalBundle, error) {
	notifier, err := ProvideNotifier(&cfg.Lark, logger)
	if err != nil {
		return nil, err
	}
	suggester, err := ProvideCategorySuggester(&cfg.OpenAI, logger)
	if err != nil {
		return nil, err
	}

	return &ExternalBundle{
		Notifier:  notifier,
		Suggester: suggester,
		Countries: ProvideCountryDirectory(&cfg.Countries, logger),
		Identity:  ProvideIdentityProvider(&cfg.Auth, &cfg.Demo, logger),
	}, nil
}

// ProvideStorage creates receipt storage rooted at the configured directory.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &StorageBundle{
		FileStorage:  storage.NewLocalFileStorage(cfg.BaseDir, logger),
		Extractor:    receipt.NewPDFTextExtractor(cfg.PDFMaxPages, logger),
		ReportWriter: report.NewExcelWriter(logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *DispatcherConfig, logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(NewLoggerAdapter(logger.Named("dispatcher"))),
		dispatcher.WithHandlerTimeout(cfg.HandlerTimeout),
	)
}

// ServiceDeps groups everything the application services are built from.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	External   *ExternalBundle
	Storage    *StorageBundle
	Dispatcher dispatcher.Dispatcher
	Config     *Config
	Logger     *zap.Logger
}

// ProvideServices creates the workflow engine and every application service,
// then subscribes the notification handlers.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.TxManager == nil {
		return nil, fmt.Errorf("repositories and transaction manager are required")
	}
	if deps.External == nil || deps.Storage == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("external clients, storage and dispatcher are required")
	}

	repos := deps.Repos
	log := NewLoggerAdapter(deps.Logger)

	engine := workflow.NewEngine(repos.Expense, repos.History, deps.TxManager, workflow.WithDispatcher(deps.Dispatcher))
	rules := service.NewRuleService(repos.Company, repos.Rule, deps.TxManager, log)

	bundle := &ServiceBundle{
		Engine: engine,
		Rules:  rules,
		Expenses: service.NewExpenseService(service.ExpenseDeps{
			CompanyRepo: repos.Company,
			UserRepo:    repos.User,
			ExpenseRepo: repos.Expense,
			HistoryRepo: repos.History,
			Rules:       rules,
			Engine:      engine,
			Logger:      log,
		}),
		Approvals: service.NewApprovalService(repos.User, repos.Expense, log),
		Users:     service.NewUserService(repos.Company, repos.User, deps.TxManager, log),
		Auth:      service.NewAuthService(deps.External.Identity, repos.User, deps.Dispatcher, log),
		Receipts: service.NewReceiptService(service.ReceiptDeps{
			CompanyRepo: repos.Company,
			ExpenseRepo: repos.Expense,
			Storage:     deps.Storage.FileStorage,
			Extractor:   deps.Storage.Extractor,
			Suggester:   deps.External.Suggester,
			MaxBytes:    deps.Config.Storage.MaxReceiptBytes,
			Logger:      log,
		}),
		Reports: service.NewReportService(repos.Company, repos.User, repos.Expense, deps.Storage.ReportWriter, log),
		Demo: service.NewDemoService(service.DemoDeps{
			CompanyRepo: repos.Company,
			UserRepo:    repos.User,
			ExpenseRepo: repos.Expense,
			HistoryRepo: repos.History,
			RuleRepo:    repos.Rule,
			TxManager:   deps.TxManager,
			Tokens:      demoTokens(&deps.Config.Demo),
			Logger:      log,
		}),
		Notifications: service.NewNotificationService(repos.Expense, repos.User, deps.External.Notifier, log),
	}

	bundle.Notifications.Register(deps.Dispatcher)
	return bundle, nil
}

// ProvideWorkers creates the background workers. Nothing is registered when the refresh interval is zero.
func ProvideWorkers(cfg *CountriesConfig, countries port.CountryDirectory, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger.Named("workers"))
	if cfg.RefreshInterval > 0 && countries != nil {
		refresherCfg := worker.DefaultCountryRefresherConfig()
		refresherCfg.Interval = cfg.RefreshInterval
		manager.Register(worker.NewCountryRefresher(refresherCfg, countries, logger.Named("countries")))
	}
	return manager
}

func demoTokens(cfg *DemoConfig) map[entity.Role]string {
	tokens := make(map[entity.Role]string, 3)
	if cfg == nil {
		return tokens
	}
	for role, token := range map[entity.Role]string{
		entity.RoleAdmin:    cfg.AdminToken,
		entity.RoleManager:  cfg.ManagerToken,
		entity.RoleEmployee: cfg.EmployeeToken,
	} {
		if token != "" {
			tokens[role] = token
		}
	}
	return tokens
}

func demoUserID(role entity.Role) string {
	switch role {
	case entity.RoleAdmin:
		return service.DemoAdminID
	case entity.RoleManager:
		return service.DemoManagerID
	default:
		return service.DemoEmployeeID
	}
}
