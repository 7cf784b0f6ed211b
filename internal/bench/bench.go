// Package bench runs one benchmark: open the store, migrate it if it is new,
// load the generated contacts and verify the last one.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bit2swaz/bulkload/internal/config"
	"github.com/bit2swaz/bulkload/internal/contact"
	"github.com/bit2swaz/bulkload/internal/loader"
	"github.com/bit2swaz/bulkload/internal/metrics"
	"github.com/bit2swaz/bulkload/internal/probe"
	"github.com/bit2swaz/bulkload/internal/schema"
	"github.com/bit2swaz/bulkload/internal/store"
)

type Summary struct {
	RunID     string
	Driver    string
	Target    string
	Count     int
	BlockSize int
	Migrated  bool
	Load      *loader.Report
	Probe     *probe.Result
}

// Run executes the benchmark described by cfg. On failure the returned
// summary holds whatever phases completed, so callers can still report
// them.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (summary *Summary, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	summary = &Summary{
		RunID:     uuid.NewString(),
		Driver:    cfg.Driver,
		Target:    target(cfg),
		Count:     cfg.Count,
		BlockSize: cfg.BlockSize,
	}
	logger = logger.With("run_id", summary.RunID)

	s, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return summary, fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close database: %w", cerr))
		}
	}()
	logger.Info("Database initialized", "driver", s.Dialect().Name, "target", summary.Target, "fresh", s.Fresh())

	start := time.Now()
	summary.Migrated, err = schema.NewInitializer(s, logger).EnsureSchema(ctx)
	if err != nil {
		return summary, err
	}
	if summary.Migrated {
		metrics.SetPhase(metrics.PhaseMigrate, time.Since(start))
	}

	summary.Load, err = loader.New(s, loader.WithLogger(logger)).
		LoadAll(ctx, contact.NewGenerator(cfg.Count), cfg.BlockSize)
	if err != nil {
		return summary, err
	}

	summary.Probe, err = probe.New(s, logger).Lookup(ctx, cfg.Count)
	if err != nil {
		return summary, err
	}

	return summary, nil
}

// ExitCode maps a Run error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

func target(cfg *config.Config) string {
	if d, err := store.ParseDialect(cfg.Driver); err == nil && d == store.Postgres {
		return "postgres"
	}
	return cfg.DBPath
}
