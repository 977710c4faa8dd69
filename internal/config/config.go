// Package config loads application configuration from a YAML file with
// environment-variable overrides prefixed POLYWATCH.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Refresh    RefreshConfig    `mapstructure:"refresh"`
	Filter     FilterConfig     `mapstructure:"filter"`
	History    HistoryConfig    `mapstructure:"history"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds Gamma API configuration
type PolymarketConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Limit      int           `mapstructure:"limit"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// RefreshConfig holds the refresh cadence
type RefreshConfig struct {
	DataInterval time.Duration `mapstructure:"data_interval"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// FilterConfig holds the default view filters
type FilterConfig struct {
	MinLiquidity float64 `mapstructure:"min_liquidity"`
}

// HistoryConfig holds price-history tracking configuration
type HistoryConfig struct {
	PriceCap      int     `mapstructure:"price_cap"`
	Epsilon       float64 `mapstructure:"epsilon"`
	ResolutionCap int     `mapstructure:"resolution_cap"`
}

// AlertsConfig holds alert rule thresholds
type AlertsConfig struct {
	PriceMovePct float64       `mapstructure:"price_move_pct"`
	Cooldown     time.Duration `mapstructure:"cooldown"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	FilePath string `mapstructure:"file_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. A missing
// file is not an error; defaults and environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("POLYWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("polymarket.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.limit", 500)
	v.SetDefault("polymarket.timeout", "30s")
	v.SetDefault("polymarket.max_retries", 3)
	v.SetDefault("polymarket.retry_delay", "1s")

	v.SetDefault("refresh.data_interval", "2m")
	v.SetDefault("refresh.tick_interval", "1s")

	v.SetDefault("filter.min_liquidity", 1000.0)

	v.SetDefault("history.price_cap", 100)
	v.SetDefault("history.epsilon", 0.001)
	v.SetDefault("history.resolution_cap", 50)

	v.SetDefault("alerts.price_move_pct", 5.0)
	v.SetDefault("alerts.cooldown", "10m")

	v.SetDefault("telegram.enabled", false)

	v.SetDefault("storage.file_path", "./data/polywatch.json")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Polymarket.BaseURL == "" {
		return fmt.Errorf("polymarket.base_url is required")
	}
	if c.Polymarket.Limit < 1 {
		return fmt.Errorf("polymarket.limit must be at least 1")
	}
	if c.Polymarket.Timeout < time.Second {
		return fmt.Errorf("polymarket.timeout must be at least 1 second")
	}
	if c.Polymarket.MaxRetries < 1 {
		return fmt.Errorf("polymarket.max_retries must be at least 1")
	}

	if c.Refresh.DataInterval < 10*time.Second {
		return fmt.Errorf("refresh.data_interval must be at least 10 seconds")
	}
	if c.Refresh.TickInterval < 100*time.Millisecond {
		return fmt.Errorf("refresh.tick_interval must be at least 100 milliseconds")
	}
	if c.Refresh.TickInterval >= c.Refresh.DataInterval {
		return fmt.Errorf("refresh.tick_interval must be shorter than refresh.data_interval")
	}

	if c.Filter.MinLiquidity < 0 {
		return fmt.Errorf("filter.min_liquidity must not be negative")
	}

	if c.History.PriceCap < 2 {
		return fmt.Errorf("history.price_cap must be at least 2")
	}
	if c.History.Epsilon < 0 {
		return fmt.Errorf("history.epsilon must not be negative")
	}
	if c.History.ResolutionCap < 1 {
		return fmt.Errorf("history.resolution_cap must be at least 1")
	}

	if c.Alerts.PriceMovePct <= 0 {
		return fmt.Errorf("alerts.price_move_pct must be positive")
	}
	if c.Alerts.Cooldown < time.Minute {
		return fmt.Errorf("alerts.cooldown must be at least 1 minute")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.FilePath == "" {
		return fmt.Errorf("storage.file_path is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
