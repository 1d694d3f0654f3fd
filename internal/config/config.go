// Package config loads the service configuration from YAML, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment override, e.g. EXPENSES_SERVER_PORT
const EnvPrefix = "EXPENSES"

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Lark       LarkConfig       `mapstructure:"lark"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Countries  CountriesConfig  `mapstructure:"countries"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Demo       DemoConfig       `mapstructure:"demo"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Tokens is a list rather than a map because viper lowercases map keys
	Tokens []TokenConfig `mapstructure:"tokens"`
}

// TokenConfig maps one bearer token to a user
type TokenConfig struct {
	Token  string `mapstructure:"token"`
	UserID string `mapstructure:"user_id"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	AppID         string        `mapstructure:"app_id"`
	AppSecret     string        `mapstructure:"app_secret"`
	BaseURL       string        `mapstructure:"base_url"`
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	BaseURL     string `mapstructure:"base_url"`
	PromptsPath string `mapstructure:"prompts_path"`
}

// StorageConfig holds receipt storage configuration
type StorageConfig struct {
	BaseDir         string `mapstructure:"base_dir"`
	MaxReceiptBytes int64  `mapstructure:"max_receipt_bytes"`
	PDFMaxPages     int    `mapstructure:"pdf_max_pages"`
}

// CountriesConfig holds restcountries client configuration
type CountriesConfig struct {
	URL             string        `mapstructure:"url"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Attempts        uint          `mapstructure:"attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// DispatcherConfig holds event dispatcher configuration
type DispatcherConfig struct {
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

// DemoConfig holds the tokens handed out with the demo tenant
type DemoConfig struct {
	AdminToken    string `mapstructure:"admin_token"`
	ManagerToken  string `mapstructure:"manager_token"`
	EmployeeToken string `mapstructure:"employee_token"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration in increasing precedence: defaults, the YAML file at
// configPath, then environment variables. envFiles are loaded into the process
// environment first and never override variables that are already set; missing
// ones are skipped. An empty configPath skips the file.
func Load(configPath string, envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := gotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("auth.enabled", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/expenses.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.base_url", "")
	v.SetDefault("lark.retry_attempts", 3)
	v.SetDefault("lark.retry_delay", 500*time.Millisecond)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.prompts_path", "")

	v.SetDefault("storage.base_dir", "data/files")
	v.SetDefault("storage.max_receipt_bytes", 10<<20)
	v.SetDefault("storage.pdf_max_pages", 3)

	v.SetDefault("countries.url", "")
	v.SetDefault("countries.cache_ttl", 24*time.Hour)
	v.SetDefault("countries.timeout", 10*time.Second)
	v.SetDefault("countries.attempts", 3)
	v.SetDefault("countries.retry_delay", 500*time.Millisecond)
	v.SetDefault("countries.refresh_interval", 12*time.Hour)

	v.SetDefault("dispatcher.handler_timeout", 30*time.Second)

	v.SetDefault("demo.admin_token", "")
	v.SetDefault("demo.manager_token", "")
	v.SetDefault("demo.employee_token", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars accepts the conventional unprefixed names for credentials
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"lark.app_id":     "LARK_APP_ID",
		"lark.app_secret": "LARK_APP_SECRET",
		"openai.api_key":  "OPENAI_API_KEY",
	}
	for key, env := range bindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}

	seen := make(map[string]bool, len(c.Auth.Tokens))
	for i, t := range c.Auth.Tokens {
		if t.Token == "" || t.UserID == "" {
			return fmt.Errorf("auth.tokens[%d] needs both token and user_id", i)
		}
		if seen[t.Token] {
			return fmt.Errorf("auth.tokens[%d] duplicates an earlier token", i)
		}
		seen[t.Token] = true
	}

	if c.Storage.PDFMaxPages < 0 {
		return fmt.Errorf("storage.pdf_max_pages must not be negative")
	}
	if c.Countries.RefreshInterval < 0 {
		return fmt.Errorf("countries.refresh_interval must not be negative")
	}

	return c.ToContainerConfig().Validate()
}
