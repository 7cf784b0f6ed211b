// Package config resolves a run's settings from flags, BULKLOAD_* environment
// variables and an optional .env file, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bit2swaz/bulkload/internal/store"
)

const (
	EnvPrefix     = "BULKLOAD"
	DefaultDBPath = "contacts.sqlite3"
)

type Config struct {
	Count     int `mapstructure:"-"`
	BlockSize int `mapstructure:"-"`

	Driver      string `mapstructure:"driver"`
	DBPath      string `mapstructure:"db"`
	DSN         string `mapstructure:"dsn"`
	LogLevel    string `mapstructure:"log-level"`
	MetricsAddr string `mapstructure:"metrics-addr"`
	MetricsFile string `mapstructure:"metrics-file"`
	NoTable     bool   `mapstructure:"no-table"`
}

// RegisterFlags declares every setting on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("driver", store.SQLite.Name, "Storage driver (sqlite3 or postgres)")
	fs.String("db", DefaultDBPath, "SQLite database file")
	fs.String("dsn", "", "Postgres connection string (postgres driver only)")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9090)")
	fs.String("metrics-file", "", "Write Prometheus metrics to this file when the run ends")
	fs.Bool("no-table", false, "Do not print the summary table")
}

func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ParseArgs reads the two positional arguments: record count and block size.
func (c *Config) ParseArgs(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("expected <count> <block-size>, got %d arguments", len(args))
	}

	count, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", args[0], err)
	}
	blockSize, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid block size %q: %w", args[1], err)
	}

	c.Count = count
	c.BlockSize = blockSize
	return c.Validate()
}

func (c *Config) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", c.Count)
	}
	if c.BlockSize < 1 {
		return fmt.Errorf("block size must be at least 1, got %d", c.BlockSize)
	}

	dialect, err := store.ParseDialect(c.Driver)
	if err != nil {
		return err
	}
	if dialect == store.Postgres && c.DSN == "" {
		return fmt.Errorf("--dsn is required for the postgres driver")
	}
	if dialect == store.SQLite && c.DBPath == "" {
		return fmt.Errorf("--db must not be empty")
	}

	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c *Config) StoreOptions() store.Options {
	return store.Options{Driver: c.Driver, Path: c.DBPath, DSN: c.DSN}
}
