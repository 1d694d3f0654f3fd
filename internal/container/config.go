// Package container wires the expense approval components and owns their lifecycle.
package container

import (
	"fmt"
	"time"
)

// Database drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all configuration for the Container.
type Config struct {
	Database   DatabaseConfig
	Auth       AuthConfig
	Lark       LarkConfig
	OpenAI     OpenAIConfig
	Storage    StorageConfig
	Countries  CountriesConfig
	Dispatcher DispatcherConfig
	Demo       DemoConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is "sqlite" or "memory"
	Driver string

	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig holds the static bearer token table.
type AuthConfig struct {
	// Tokens maps bearer token to user id
	Tokens map[string]string
}

// LarkConfig holds Lark IM settings.
type LarkConfig struct {
	// Enabled routes notifications through Lark instead of the log
	Enabled bool

	AppID     string
	AppSecret string
	BaseURL   string

	RetryAttempts uint
	RetryDelay    time.Duration
}

// OpenAIConfig holds category suggestion settings. An empty APIKey disables suggestions.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string

	// PromptsPath optionally points at a YAML file overriding the built-in prompts
	PromptsPath string
}

// StorageConfig holds receipt storage settings.
type StorageConfig struct {
	// BaseDir is the root directory for stored receipts
	BaseDir string

	MaxReceiptBytes int64

	// PDFMaxPages bounds text extraction per receipt
	PDFMaxPages int
}

// CountriesConfig holds the country directory settings.
type CountriesConfig struct {
	URL        string
	CacheTTL   time.Duration
	Timeout    time.Duration
	Attempts   uint
	RetryDelay time.Duration

	// RefreshInterval of the background refresher; zero disables it
	RefreshInterval time.Duration
}

// DispatcherConfig holds event dispatcher settings.
type DispatcherConfig struct {
	HandlerTimeout time.Duration
}

// DemoConfig holds the bearer tokens issued to the demo users.
type DemoConfig struct {
	AdminToken    string
	ManagerToken  string
	EmployeeToken string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "data/expenses.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Auth: AuthConfig{
			Tokens: map[string]string{},
		},
		Lark: LarkConfig{
			RetryAttempts: 3,
			RetryDelay:    500 * time.Millisecond,
		},
		Storage: StorageConfig{
			BaseDir:         "data/files",
			MaxReceiptBytes: 10 << 20,
			PDFMaxPages:     3,
		},
		Countries: CountriesConfig{
			CacheTTL:        24 * time.Hour,
			Timeout:         10 * time.Second,
			Attempts:        3,
			RetryDelay:      500 * time.Millisecond,
			RefreshInterval: 12 * time.Hour,
		},
		Dispatcher: DispatcherConfig{
			HandlerTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverMemory, c.Database.Driver)
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Storage.MaxReceiptBytes <= 0 {
		return fmt.Errorf("storage.max_receipt_bytes must be positive")
	}

	return nil
}
