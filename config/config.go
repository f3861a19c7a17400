/*
Package config loads server configuration from file and environment.

PURPOSE:
  One place for everything tunable at deploy time: HTTP server, database
  path, scheduler cadence, business-rule defaults, and logging. Values
  come from an optional YAML file with environment overrides; every key
  has a sensible default so the server runs with no config at all.
*/
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SchedulerConfig holds the nightly job configuration.
type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CronSpec string `mapstructure:"cron_spec"`
}

// RulesConfig holds the initial organization business rules. These seed
// the settings provider; runtime changes go through the settings feed.
type RulesConfig struct {
	DueDatePolicy      string `mapstructure:"due_date_policy"`
	LateFeeAmount      string `mapstructure:"late_fee_amount"`
	LateFeeStartDay    int    `mapstructure:"late_fee_start_day"`
	GracePeriodDays    int    `mapstructure:"grace_period_days"`
	ChildSurcharge     string `mapstructure:"child_surcharge"`
	MaxPastPaymentDays int    `mapstructure:"max_past_payment_days"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from an optional file plus environment
// variables. An empty configPath skips the file entirely.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("database.path", "data/lease.db")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cron_spec", "0 2 * * *")

	v.SetDefault("rules.due_date_policy", "first_day")
	v.SetDefault("rules.late_fee_amount", "5.00")
	v.SetDefault("rules.late_fee_start_day", 0)
	v.SetDefault("rules.grace_period_days", 3)
	v.SetDefault("rules.child_surcharge", "0.00")
	v.SetDefault("rules.max_past_payment_days", 30)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Rules.DueDatePolicy != "first_day" && c.Rules.DueDatePolicy != "last_day" {
		return fmt.Errorf("unknown due date policy: %q", c.Rules.DueDatePolicy)
	}
	return nil
}
