package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
bot:
  token: "123:abc"
  admin_ids: [7, 8]
storage:
  type: memory
  operation_timeout: 2s
logging:
  level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Bot.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Bot.Token)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("storage type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.Storage.OperationTimeout != 2*time.Second {
		t.Errorf("operation timeout = %v, want 2s", cfg.Storage.OperationTimeout)
	}
	if len(cfg.Bot.AdminIDs) != 2 || cfg.Bot.AdminIDs[0] != 7 {
		t.Errorf("admin ids = %v", cfg.Bot.AdminIDs)
	}
	if cfg.Limits.MaxCustomCommands != 50 {
		t.Errorf("default max_custom_commands = %d, want 50", cfg.Limits.MaxCustomCommands)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("ADMIN_IDS", "11, 12")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Bot.Token != "env-token" {
		t.Errorf("token = %q, want env-token", cfg.Bot.Token)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLite.Path != "/tmp/x.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Bot.AdminIDs) != 2 || cfg.Bot.AdminIDs[1] != 12 {
		t.Errorf("admin ids = %v", cfg.Bot.AdminIDs)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"missing token", func(c *Config) { c.Bot.Token = "" }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }},
		{"zero timeout", func(c *Config) { c.Storage.OperationTimeout = 0 }},
		{"sqlite without path", func(c *Config) { c.Storage.SQLite.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Bot:     BotConfig{Token: "t"},
				Storage: StorageConfig{Type: "sqlite", OperationTimeout: time.Second, SQLite: SQLiteConfig{Path: "a.db"}},
			}
			tt.mut(cfg)
			if err := validateConfig(cfg); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
