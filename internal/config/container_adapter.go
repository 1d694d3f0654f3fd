package config

import (
	"github.com/garyjia/expense-approvals/internal/container"
	apihttp "github.com/garyjia/expense-approvals/internal/interfaces/http"
	"github.com/garyjia/expense-approvals/pkg/utils"
)

// ToContainerConfig converts the loaded Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	tokens := make(map[string]string, len(c.Auth.Tokens))
	for _, t := range c.Auth.Tokens {
		tokens[t.Token] = t.UserID
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Auth: container.AuthConfig{
			Tokens: tokens,
		},
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			BaseURL:       c.Lark.BaseURL,
			RetryAttempts: c.Lark.RetryAttempts,
			RetryDelay:    c.Lark.RetryDelay,
		},
		OpenAI: container.OpenAIConfig{
			APIKey:      c.OpenAI.APIKey,
			Model:       c.OpenAI.Model,
			BaseURL:     c.OpenAI.BaseURL,
			PromptsPath: c.OpenAI.PromptsPath,
		},
		Storage: container.StorageConfig{
			BaseDir:         c.Storage.BaseDir,
			MaxReceiptBytes: c.Storage.MaxReceiptBytes,
			PDFMaxPages:     c.Storage.PDFMaxPages,
		},
		Countries: container.CountriesConfig{
			URL:             c.Countries.URL,
			CacheTTL:        c.Countries.CacheTTL,
			Timeout:         c.Countries.Timeout,
			Attempts:        c.Countries.Attempts,
			RetryDelay:      c.Countries.RetryDelay,
			RefreshInterval: c.Countries.RefreshInterval,
		},
		Dispatcher: container.DispatcherConfig{
			HandlerTimeout: c.Dispatcher.HandlerTimeout,
		},
		Demo: container.DemoConfig{
			AdminToken:    c.Demo.AdminToken,
			ManagerToken:  c.Demo.ManagerToken,
			EmployeeToken: c.Demo.EmployeeToken,
		},
	}
}

// ToServerConfig converts the loaded Config to the HTTP server settings.
// The upload limit follows the receipt storage limit.
func (c *Config) ToServerConfig() apihttp.ServerConfig {
	return apihttp.ServerConfig{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		Mode:            c.Server.Mode,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		AuthEnabled:     c.Auth.Enabled,
		MaxUploadBytes:  c.Storage.MaxReceiptBytes,
		AllowedOrigins:  c.Server.AllowedOrigins,
	}
}

// ServiceName tags every log entry
const ServiceName = "expense-approvals"

// ToLoggerConfig converts the logger section for utils.NewLogger.
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
		Service:    ServiceName,
	}
}
