// Package config provides configuration management for the paper trading platform.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"nifty-paper/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Client   ClientConfig   `mapstructure:"client"`
	UI       UIConfig       `mapstructure:"ui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// FeedConfig holds simulated feed configuration.
type FeedConfig struct {
	TickIntervalMin time.Duration `mapstructure:"tick_interval_min"`
	TickIntervalMax time.Duration `mapstructure:"tick_interval_max"`
	MaxMovePercent  float64       `mapstructure:"max_move_percent"`
	InstrumentsCSV  string        `mapstructure:"instruments_csv"`
	HistoryDays     int           `mapstructure:"history_days"`
}

// TradingConfig holds paper trading limits.
type TradingConfig struct {
	InitialBalance  float64            `mapstructure:"initial_balance"`
	MaxPositionSize float64            `mapstructure:"max_position_size"`
	MaxOrdersPerDay int                `mapstructure:"max_orders_per_day"`
	MinOrderValue   float64            `mapstructure:"min_order_value"`
	DefaultProduct  models.ProductType `mapstructure:"default_product"`
	DefaultExchange models.Exchange    `mapstructure:"default_exchange"`
	EnforceHours    bool               `mapstructure:"enforce_hours"`
}

// ClientConfig holds API client configuration.
type ClientConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	WSURL   string        `mapstructure:"ws_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// UIConfig holds CLI output configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
	TimeFormat   string `mapstructure:"time_format"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/nifty-paper"
	}
	return filepath.Join(home, ".config", "nifty-paper")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env in the working directory is picked up in dev setups.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// First run: write a template and continue on defaults.
			if werr := createTemplateConfig(configDir, name); werr != nil {
				return werr
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_ttl", "24h")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.path", filepath.Join(configDir, "nifty-paper.db"))

	v.SetDefault("feed.tick_interval_min", "1s")
	v.SetDefault("feed.tick_interval_max", "3s")
	v.SetDefault("feed.max_move_percent", 0.5)
	v.SetDefault("feed.instruments_csv", "")
	v.SetDefault("feed.history_days", 30)

	v.SetDefault("trading.initial_balance", 100000.0)
	v.SetDefault("trading.max_position_size", 50000.0)
	v.SetDefault("trading.max_orders_per_day", 100)
	v.SetDefault("trading.min_order_value", 100.0)
	v.SetDefault("trading.default_product", "MIS")
	v.SetDefault("trading.default_exchange", "NFO")
	v.SetDefault("trading.enforce_hours", false)

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.ws_url", "ws://localhost:8080/ws")
	v.SetDefault("client.timeout", "10s")

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "02-Jan-2006")
	v.SetDefault("ui.time_format", "15:04:05")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", filepath.Join(configDir, "nifty-paper.log"))
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NIFTYPAPER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("NIFTYPAPER_JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("NIFTYPAPER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NIFTYPAPER_BASE_URL"); v != "" {
		cfg.Client.BaseURL = v
	}
	if v := os.Getenv("NIFTYPAPER_WS_URL"); v != "" {
		cfg.Client.WSURL = v
	}
	if v := os.Getenv("NIFTYPAPER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NIFTYPAPER_INITIAL_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.InitialBalance = f
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.InitialBalance <= 0 {
		return fmt.Errorf("initial_balance must be positive")
	}
	if c.Trading.MaxPositionSize <= 0 {
		return fmt.Errorf("max_position_size must be positive")
	}
	if c.Trading.MaxOrdersPerDay <= 0 {
		return fmt.Errorf("max_orders_per_day must be positive")
	}
	if c.Trading.MinOrderValue < 0 {
		return fmt.Errorf("min_order_value must be non-negative")
	}
	if c.Feed.TickIntervalMin <= 0 || c.Feed.TickIntervalMax < c.Feed.TickIntervalMin {
		return fmt.Errorf("invalid feed tick interval range")
	}
	if c.Feed.MaxMovePercent <= 0 || c.Feed.MaxMovePercent > 20 {
		return fmt.Errorf("max_move_percent must be in (0, 20]")
	}
	switch c.Trading.DefaultProduct {
	case "", models.ProductMIS, models.ProductCNC, models.ProductNRML:
	default:
		return fmt.Errorf("invalid default product: %s", c.Trading.DefaultProduct)
	}
	return nil
}
