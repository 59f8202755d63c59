// Package config loads run configuration from environment variables and
// an optional vendbench.yaml file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the tunable surface of one simulation run.
type Config struct {
	StartingBalance     float64 `mapstructure:"starting_balance"`
	DailyFee            float64 `mapstructure:"daily_fee"`
	MaxDays             int     `mapstructure:"max_days"`
	MaxMessages         int     `mapstructure:"max_messages"`
	SubAgentMaxMessages int     `mapstructure:"sub_agent_max_messages"`
	ContextBudget       int     `mapstructure:"context_budget"`
	BankruptcyGraceDays int     `mapstructure:"bankruptcy_grace_days"`
	SupplierLatencyHrs  int     `mapstructure:"supplier_latency_hours"`
	Seed                int64   `mapstructure:"seed"`
	DBPath              string  `mapstructure:"db_path"`
	Model               string  `mapstructure:"model"`
	AnthropicAPIKey     string  `mapstructure:"anthropic_api_key"`
	PerplexityAPIKey    string  `mapstructure:"perplexity_api_key"`
	LogDir              string  `mapstructure:"log_dir"`
}

// Load reads configuration: defaults, then vendbench.yaml (if present in
// the working directory), then VENDBENCH_* environment variables.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("starting_balance", 500.0)
	v.SetDefault("daily_fee", 2.0)
	v.SetDefault("max_days", 120)
	v.SetDefault("max_messages", 2000)
	v.SetDefault("sub_agent_max_messages", 40)
	v.SetDefault("context_budget", 30000)
	v.SetDefault("bankruptcy_grace_days", 10)
	v.SetDefault("supplier_latency_hours", 12)
	v.SetDefault("seed", 42)
	v.SetDefault("db_path", "data/vendbench.db")
	v.SetDefault("model", "")
	v.SetDefault("log_dir", "data/logs")

	v.SetConfigName("vendbench")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VENDBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DailyFee < 0 {
		return fmt.Errorf("daily_fee must be non-negative")
	}
	if c.MaxDays <= 0 {
		return fmt.Errorf("max_days must be positive")
	}
	if c.MaxMessages <= 0 {
		return fmt.Errorf("max_messages must be positive")
	}
	if c.BankruptcyGraceDays <= 0 {
		return fmt.Errorf("bankruptcy_grace_days must be positive")
	}
	return nil
}
