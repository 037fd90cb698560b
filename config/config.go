/*
Package config loads runtime settings from the environment.

SOURCES (later wins):
  1. Defaults below
  2. .env file in the working directory (optional)
  3. Process environment
  4. Command-line flags, applied by cmd/* after Load

VARIABLES:
  PORT                  HTTP port (8080)
  DB_PATH               SQLite path (syndicate.db), ":memory:" allowed
  LOG_LEVEL             logrus level (info)
  LOG_FORMAT            "text" or "json" (text)
  CORS_ORIGINS          comma separated allowed origins
  TIMEZONE              IANA zone used for "today" (UTC)
  CONTRIBUTION_UNIT     owed per player per Monday (5)
  BUDGET_UNIT           betting budget released per window (30)
  BUDGET_WINDOW_WEEKS   weeks per budget window (6)
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/warp/syndicate/ledger"
	"github.com/warp/syndicate/syndicate"
)

type Config struct {
	Port        int
	DBPath      string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string
	Timezone    string

	ContributionUnit  decimal.Decimal
	BudgetUnit        decimal.Decimal
	BudgetWindowWeeks int
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	rules := syndicate.DefaultRules()
	return &Config{
		Port:              8080,
		DBPath:            "syndicate.db",
		LogLevel:          "info",
		LogFormat:         "text",
		CORSOrigins:       []string{"http://localhost:5173", "http://localhost:8080"},
		Timezone:          "UTC",
		ContributionUnit:  rules.ContributionUnit,
		BudgetUnit:        rules.BudgetUnit,
		BudgetWindowWeeks: rules.BudgetWindowWeeks,
	}
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, falling back to Default for unset
// variables.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := getenv("TIMEZONE"); v != "" {
		cfg.Timezone = v
	}

	var err error
	if cfg.ContributionUnit, err = decimalEnv(getenv, "CONTRIBUTION_UNIT", cfg.ContributionUnit); err != nil {
		return nil, err
	}
	if cfg.BudgetUnit, err = decimalEnv(getenv, "BUDGET_UNIT", cfg.BudgetUnit); err != nil {
		return nil, err
	}
	if v := getenv("BUDGET_WINDOW_WEEKS"); v != "" {
		weeks, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BUDGET_WINDOW_WEEKS: %w", err)
		}
		cfg.BudgetWindowWeeks = weeks
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks everything Load can't check while parsing.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	if err := c.Rules().Validate(); err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}
	return nil
}

func (c *Config) Rules() syndicate.Rules {
	return syndicate.Rules{
		ContributionUnit:  c.ContributionUnit,
		BudgetUnit:        c.BudgetUnit,
		BudgetWindowWeeks: c.BudgetWindowWeeks,
	}
}

// Clock returns a system clock in the configured timezone.
func (c *Config) Clock() ledger.Clock {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return ledger.SystemClock{Location: loc}
}

// Logger configures the standard logrus logger and returns it.
func (c *Config) Logger() *log.Logger {
	logger := log.StandardLogger()
	if level, err := log.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func decimalEnv(getenv func(string) string, key string, def decimal.Decimal) (decimal.Decimal, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
