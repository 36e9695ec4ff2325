package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Flood      FloodConfig      `mapstructure:"flood"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
	Limits     LimitsConfig     `mapstructure:"limits"`
}

type BotConfig struct {
	Token         string        `mapstructure:"token"`
	Webhook       WebhookConfig `mapstructure:"webhook"`
	UpdateTimeout int           `mapstructure:"update_timeout"`
	// AdminIDs are treated as privileged in every chat.
	AdminIDs      []int64       `mapstructure:"admin_ids"`
	AdminCacheTTL time.Duration `mapstructure:"admin_cache_ttl"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Port    int    `mapstructure:"port"`
}

type StorageConfig struct {
	Type             string        `mapstructure:"type"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	Redis            RedisConfig   `mapstructure:"redis"`
	Memory           MemoryConfig  `mapstructure:"memory"`
	SQLite           SQLiteConfig  `mapstructure:"sqlite"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type MemoryConfig struct {
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type FloodConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

// LimitsConfig seeds the process-wide global settings on startup.
type LimitsConfig struct {
	MaxMediaPerUser     int    `mapstructure:"max_media_per_user"`
	MaxCustomCommands   int    `mapstructure:"max_custom_commands"`
	DefaultLanguage     string `mapstructure:"default_language"`
	BackupIntervalHours int    `mapstructure:"backup_interval_hours"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.update_timeout", 60)
	v.SetDefault("bot.admin_cache_ttl", 5*time.Minute)
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.operation_timeout", 5*time.Second)
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.key_prefix", "gk")
	v.SetDefault("storage.memory.cleanup_interval", 10*time.Minute)
	v.SetDefault("storage.sqlite.path", "data/bot.db")
	v.SetDefault("flood.enabled", true)
	v.SetDefault("flood.cleanup_interval", 10*time.Minute)
	v.SetDefault("flood.idle_timeout", 30*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file.compress", true)
	v.SetDefault("monitoring.metrics.port", 9090)
	v.SetDefault("monitoring.metrics.path", "/metrics")
	v.SetDefault("i18n.default_language", "en")
	v.SetDefault("i18n.languages", []string{"en", "ru"})
	v.SetDefault("limits.max_media_per_user", 100)
	v.SetDefault("limits.max_custom_commands", 50)
	v.SetDefault("limits.default_language", "en")
	v.SetDefault("limits.backup_interval_hours", 24)
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath loads defaults and environment only.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.BindEnv("bot.token", "BOT_TOKEN")
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.redis.db", "REDIS_DB")
	v.BindEnv("storage.sqlite.path", "SQLITE_PATH", "DATABASE_PATH")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Handle Redis address special case
	if redisHost := v.GetString("REDIS_HOST"); redisHost != "" {
		redisPort := v.GetString("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	// ADMIN_IDS=1,2,3 extends the configured list
	if raw := v.GetString("ADMIN_IDS"); raw != "" {
		ids, err := parseIDs(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ADMIN_IDS: %w", err)
		}
		config.Bot.AdminIDs = append(config.Bot.AdminIDs, ids...)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	switch cfg.Storage.Type {
	case "redis", "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	if cfg.Storage.OperationTimeout <= 0 {
		return fmt.Errorf("storage operation timeout must be positive")
	}
	if cfg.Storage.Type == "sqlite" && cfg.Storage.SQLite.Path == "" {
		return fmt.Errorf("sqlite path is required")
	}
	return nil
}
