package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const sampleYAML = `
server:
  port: 9000
  mode: debug
  allowed_origins:
    - https://app.example.test
auth:
  enabled: true
  tokens:
    - token: Admin-Token
      user_id: admin-1
database:
  driver: memory
storage:
  base_dir: /tmp/receipts
  max_receipt_bytes: 2048
countries:
  refresh_interval: 0s
lark:
  retry_delay: 2s
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "data/expenses.db", cfg.Database.Path)
	assert.Equal(t, int64(10<<20), cfg.Storage.MaxReceiptBytes)
	assert.Equal(t, 12*time.Hour, cfg.Countries.RefreshInterval)
	assert.Equal(t, uint(3), cfg.Lark.RetryAttempts)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, []string{"https://app.example.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Lark.RetryDelay)
	assert.Zero(t, cfg.Countries.RefreshInterval)

	// token case survives
	require.Len(t, cfg.Auth.Tokens, 1)
	assert.Equal(t, "Admin-Token", cfg.Auth.Tokens[0].Token)

	cc := cfg.ToContainerConfig()
	assert.Equal(t, map[string]string{"Admin-Token": "admin-1"}, cc.Auth.Tokens)
	assert.Equal(t, "/tmp/receipts", cc.Storage.BaseDir)

	sc := cfg.ToServerConfig()
	assert.True(t, sc.AuthEnabled)
	assert.Equal(t, int64(2048), sc.MaxUploadBytes)
	assert.Equal(t, 9000, sc.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EXPENSES_SERVER_PORT", "7070")
	t.Setenv("EXPENSES_DATABASE_DRIVER", "memory")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("EXPENSES_LARK_APP_ID", "cli_prefixed")

	cfg, err := Load(writeFile(t, "config.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "cli_prefixed", cfg.Lark.AppID)
}

func TestLoad_EnvFile(t *testing.T) {
	const key = "EXPENSES_DEMO_ADMIN_TOKEN"
	t.Cleanup(func() { os.Unsetenv(key) })

	envFile := writeFile(t, ".env", key+"=from-dotenv\n")
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"), envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Demo.AdminToken)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad mode", "server:\n  mode: verbose\n", "server.mode"},
		{"bad driver", "database:\n  driver: postgres\n", "database.driver"},
		{"token without user", "auth:\n  tokens:\n    - token: abc\n", "auth.tokens[0]"},
		{"duplicate token", "auth:\n  tokens:\n    - {token: abc, user_id: u1}\n    - {token: abc, user_id: u2}\n", "duplicates"},
		{"lark without credentials", "lark:\n  enabled: true\n", "lark.app_id"},
		{"zero upload limit", "storage:\n  max_receipt_bytes: 0\n", "max_receipt_bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
