package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// IntegrationConfig holds the configuration for a single integration account.
type IntegrationConfig struct {
	// ID is the unique identifier for this integration instance.
	ID string `mapstructure:"id" yaml:"id"`

	// Type identifies the integration kind (e.g., "canvas", "timeedit").
	Type string `mapstructure:"type" yaml:"type"`

	// Name is the user-defined label for this integration instance.
	Name string `mapstructure:"name" yaml:"name"`

	// BaseURL is the root URL of the remote service.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Enabled controls whether this integration is actively synced.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// PollIntervalSec is how often (in seconds) to run a sync.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// Config holds integration-specific key-value settings
	// (e.g., course filters, feed URLs, usernames).
	Config map[string]string `mapstructure:"config" yaml:"config"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum level to emit (debug, info, warn, error).
	Level string `mapstructure:"level" yaml:"level"`

	// Format selects the encoder: "json" or "console".
	Format string `mapstructure:"format" yaml:"format"`
}

// DigestConfig holds the daily notification digest windows.
type DigestConfig struct {
	// MorningHour is the local hour of the morning delivery window.
	MorningHour int `mapstructure:"morning_hour" yaml:"morning_hour"`

	// EveningHour is the local hour of the evening delivery window.
	EveningHour int `mapstructure:"evening_hour" yaml:"evening_hour"`

	// TickIntervalSec is how often the dispatcher checks for due entries.
	TickIntervalSec int `mapstructure:"tick_interval_sec" yaml:"tick_interval_sec"`
}

// HealingConfig holds the sync auto-healing parameters.
type HealingConfig struct {
	// BackoffBaseSec is the delay after the first consecutive failure.
	BackoffBaseSec int `mapstructure:"backoff_base_sec" yaml:"backoff_base_sec"`

	// BackoffMaxSec caps the exponential backoff delay.
	BackoffMaxSec int `mapstructure:"backoff_max_sec" yaml:"backoff_max_sec"`

	// CircuitThreshold is the consecutive-failure count that opens the circuit.
	CircuitThreshold int `mapstructure:"circuit_threshold" yaml:"circuit_threshold"`

	// CircuitOpenSec is how long an opened circuit stays open.
	CircuitOpenSec int `mapstructure:"circuit_open_sec" yaml:"circuit_open_sec"`
}

// RecoveryConfig holds the failure recovery prompt parameters.
type RecoveryConfig struct {
	// PromptThreshold is the consecutive-failure count that triggers a
	// recovery prompt to the user.
	PromptThreshold int `mapstructure:"prompt_threshold" yaml:"prompt_threshold"`

	// PromptCooldownMin is the minimum gap (minutes) between prompts for
	// the same integration.
	PromptCooldownMin int `mapstructure:"prompt_cooldown_min" yaml:"prompt_cooldown_min"`
}

// EmailConfig holds SMTP delivery settings for the email channel.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
	To       string `mapstructure:"to" yaml:"to"`
}

// TelegramConfig holds bot delivery settings for the Telegram channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id"`
}

// NotifyConfig groups the optional outbound delivery channels.
type NotifyConfig struct {
	Email    EmailConfig    `mapstructure:"email" yaml:"email"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
}

// RetentionConfig holds cleanup settings for accumulated records.
type RetentionConfig struct {
	// SyncAttemptDays is how many days of health-log entries to keep.
	SyncAttemptDays int `mapstructure:"sync_attempt_days" yaml:"sync_attempt_days"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server       ServerConfig        `mapstructure:"server" yaml:"server"`
	Database     DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Log          LogConfig           `mapstructure:"log" yaml:"log"`
	Digest       DigestConfig        `mapstructure:"digest" yaml:"digest"`
	Healing      HealingConfig       `mapstructure:"healing" yaml:"healing"`
	Recovery     RecoveryConfig      `mapstructure:"recovery" yaml:"recovery"`
	Notify       NotifyConfig        `mapstructure:"notify" yaml:"notify"`
	Retention    RetentionConfig     `mapstructure:"retention" yaml:"retention"`
	Integrations []IntegrationConfig `mapstructure:"integrations" yaml:"integrations"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/companion/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "companion", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8080},
		Database: DatabaseConfig{Path: defaultDatabasePath()},
		Log:      LogConfig{Level: "info", Format: "console"},
		Digest:   DigestConfig{MorningHour: 8, EveningHour: 18, TickIntervalSec: 60},
		Healing: HealingConfig{
			BackoffBaseSec:   30,
			BackoffMaxSec:    1800,
			CircuitThreshold: 5,
			CircuitOpenSec:   3600,
		},
		Recovery:     RecoveryConfig{PromptThreshold: 3, PromptCooldownMin: 360},
		Retention:    RetentionConfig{SyncAttemptDays: 30},
		Integrations: []IntegrationConfig{},
	}
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "companion.db")
	}
	return filepath.Join(home, ".config", "companion", "companion.db")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", defaultDatabasePath())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("digest.morning_hour", 8)
	v.SetDefault("digest.evening_hour", 18)
	v.SetDefault("digest.tick_interval_sec", 60)
	v.SetDefault("healing.backoff_base_sec", 30)
	v.SetDefault("healing.backoff_max_sec", 1800)
	v.SetDefault("healing.circuit_threshold", 5)
	v.SetDefault("healing.circuit_open_sec", 3600)
	v.SetDefault("recovery.prompt_threshold", 3)
	v.SetDefault("recovery.prompt_cooldown_min", 360)
	v.SetDefault("retention.sync_attempt_days", 30)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Apply defaults for each integration entry.
	for i := range cfg.Integrations {
		if cfg.Integrations[i].PollIntervalSec == 0 {
			cfg.Integrations[i].PollIntervalSec = 300
		}
		if !cfg.Integrations[i].Enabled {
			// Missing bools unmarshal as false; unset means enabled.
			key := fmt.Sprintf("integrations.%d.enabled", i)
			if !v.IsSet(key) {
				cfg.Integrations[i].Enabled = true
			}
		}
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("database", cfg.Database)
	v.Set("log", cfg.Log)
	v.Set("digest", cfg.Digest)
	v.Set("healing", cfg.Healing)
	v.Set("recovery", cfg.Recovery)
	v.Set("notify", cfg.Notify)
	v.Set("retention", cfg.Retention)
	v.Set("integrations", cfg.Integrations)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
