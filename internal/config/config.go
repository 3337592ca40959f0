package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig
	Schedule  ScheduleConfig
	Reconcile ReconcileConfig
	Ingest    IngestConfig
	Log       LogConfig
	UI        UIConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path       string
	Migrations string
}

// ScheduleConfig holds generation policy.
type ScheduleConfig struct {
	// RecurringCap is the number of instances generated for a recurring
	// commitment declared without an end date.
	RecurringCap int `mapstructure:"recurring_cap"`
}

// ReconcileConfig holds matcher policy.
type ReconcileConfig struct {
	WindowDays      int   `mapstructure:"window_days"`
	AmountTolerance int64 `mapstructure:"amount_tolerance"`
}

// IngestConfig throttles bank imports per external account. Each import call
// takes one token regardless of row count.
type IngestConfig struct {
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// UIConfig holds presentation settings.
type UIConfig struct {
	CurrencySymbol string `mapstructure:"currency_symbol"`
	Timezone       string
}

// Load reads configuration from file and env. Env var overrides use prefix LEDGERFLOW_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("LEDGERFLOW_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "ledgerflow"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("LEDGERFLOW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "ledgerflow", "ledgerflow.db"))
	v.SetDefault("database.migrations", "internal/database/migrations")
	v.SetDefault("schedule.recurring_cap", 12)
	v.SetDefault("reconcile.window_days", 2)
	v.SetDefault("reconcile.amount_tolerance", 1)
	v.SetDefault("ingest.rate_per_second", 5.0)
	v.SetDefault("ingest.burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("ui.currency_symbol", "R$")
	v.SetDefault("ui.timezone", "America/Sao_Paulo")
}
