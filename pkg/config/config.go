package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`

	// Store configuration
	StoreDriver  string `mapstructure:"store_driver"`
	DatabasePath string `mapstructure:"database_path"`
	DatabaseURL  string `mapstructure:"database_url"`

	// HTTP surface
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`

	LogFormat string `mapstructure:"log_format"`

	// RebuildOnDelete makes Delete recompute rate caches and pair memory from the log.
	RebuildOnDelete bool `mapstructure:"ledger_rebuild_on_delete"`
}

// Load reads configuration from an optional file, a .env file in the working
// directory and the process environment, in increasing order of precedence.
// An empty path looks for buhwise.yaml in the working directory and the user
// config directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("buhwise")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := appDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AllowedOrigins = splitOrigins(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("store_driver", DriverSQLite)
	v.SetDefault("database_path", defaultDatabasePath())
	v.SetDefault("database_url", "")
	v.SetDefault("allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("rate_limit_rps", 100.0)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("log_format", "text")
	v.SetDefault("ledger_rebuild_on_delete", false)
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for the sqlite store")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func appDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "BuhWise"), nil
}

func defaultDatabasePath() string {
	dir, err := appDir()
	if err != nil {
		return "buhwise.db"
	}
	return filepath.Join(dir, "buhwise.db")
}

// splitOrigins accepts both a YAML list and a comma separated env value.
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
