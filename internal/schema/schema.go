// Package schema creates the contacts table and its unique email index the
// first time a store is opened.
package schema

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/bit2swaz/bulkload/internal/store"
)

//go:embed migrations/sqlite3/*.sql migrations/postgres/*.sql
var migrations embed.FS

// SchemaError means the store rejected the DDL. It is never retried.
type SchemaError struct {
	Dialect string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema initialization failed (%s): %v", e.Dialect, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

type Initializer struct {
	store  *store.Store
	logger *slog.Logger
}

func NewInitializer(s *store.Store, logger *slog.Logger) *Initializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initializer{store: s, logger: logger}
}

// EnsureSchema migrates only when the store was created by this run.
// Running DDL against an existing store is skipped entirely.
func (i *Initializer) EnsureSchema(ctx context.Context) (bool, error) {
	if !i.store.Fresh() {
		i.logger.Debug("Store already exists, skipping migration")
		return false, nil
	}
	if err := i.Migrate(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (i *Initializer) Migrate(ctx context.Context) error {
	dialect := i.store.Dialect()
	i.logger.Info("Migrating db ...", "dialect", dialect.Name)

	goose.SetBaseFS(migrations)
	goose.SetLogger(&gooseLogger{logger: i.logger})

	if err := goose.SetDialect(dialect.Name); err != nil {
		return &SchemaError{Dialect: dialect.Name, Err: fmt.Errorf("failed to set dialect: %w", err)}
	}

	if err := goose.UpContext(ctx, i.store.DB(), path.Join("migrations", dialect.Name)); err != nil {
		return &SchemaError{Dialect: dialect.Name, Err: fmt.Errorf("failed to run migrations: %w", err)}
	}

	i.logger.Info("Done migrating db")
	return nil
}

// Version reports the goose version recorded in the store.
func (i *Initializer) Version(ctx context.Context) (int64, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(i.store.Dialect().Name); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, i.store.DB())
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

type gooseLogger struct {
	logger *slog.Logger
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
	os.Exit(1)
}
