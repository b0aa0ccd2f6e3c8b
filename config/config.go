package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// DBDriver selects the store: "mysql" for deployments, "sqlite3" for
	// a single-node or local setup.
	DBDriver      string `env:"DB_DRIVER"      envDefault:"mysql"`
	MySQLUser     string `env:"MYSQL_USER"     envDefault:"user"`
	MySQLPassword string `env:"MYSQL_PWD"      envDefault:"password"`
	MySQLHost     string `env:"MYSQL_HOST"     envDefault:"tcp(127.0.0.1:3306)"`
	MySQLDatabase string `env:"MYSQL_DATABASE" envDefault:"salvage_market"`
	SQLitePath    string `env:"SQLITE_PATH"    envDefault:"./salvage_market.db"`

	SweepSchedule string `env:"SWEEP_SCHEDULE" envDefault:"*/5 * * * *"`

	PaymentURL     string        `env:"PAYMENT_URL"     envDefault:"http://127.0.0.1:8181"`
	PaymentAPIKey  string        `env:"PAYMENT_API_KEY"`
	PaymentTimeout time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"15s"`
	Currency       string        `env:"CURRENCY"        envDefault:"AUD"`

	AgentPolicy string   `env:"AGENT_POLICY" envDefault:"least-loaded"`
	OperatorIDs []string `env:"OPERATOR_IDS" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads a .env file if one exists, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite3":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or sqlite3, got %q", c.DBDriver)
	}
	if !gronx.New().IsValid(c.SweepSchedule) {
		return fmt.Errorf("SWEEP_SCHEDULE %q is not a valid cron expression", c.SweepSchedule)
	}
	if c.PaymentTimeout <= 0 {
		return fmt.Errorf("PAYMENT_TIMEOUT must be positive")
	}
	switch c.AgentPolicy {
	case "least-loaded", "round-robin", "random":
	default:
		return fmt.Errorf("AGENT_POLICY %q is not one of least-loaded, round-robin, random", c.AgentPolicy)
	}
	return nil
}

// DSN returns the data source name for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite3" {
		return SQLiteDSN(c.SQLitePath)
	}
	return fmt.Sprintf("%s:%s@%s/%s?parseTime=true&loc=UTC", c.MySQLUser, c.MySQLPassword, c.MySQLHost, c.MySQLDatabase)
}

// SQLiteDSN enables foreign keys and takes the write lock at BEGIN so
// conditional updates inside a transaction never deadlock on upgrade.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
}

func (c *Config) IsOperator(userID string) bool {
	for _, id := range c.OperatorIDs {
		if strings.TrimSpace(id) == userID && userID != "" {
			return true
		}
	}
	return false
}

func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
