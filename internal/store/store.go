package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const MemoryPath = ":memory:"

type Options struct {
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the postgres connection string.
	DSN string
}

// Store is the single connection a run owns. It exposes DDL execution,
// prepared statements, explicit transactions, single-row queries and
// open/close, nothing else.
type Store struct {
	db      *sql.DB
	dialect Dialect
	fresh   bool
}

// New opens the SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	return Open(context.Background(), Options{Driver: SQLite.Name, Path: dbPath})
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	dialect, err := ParseDialect(opts.Driver)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case Postgres:
		return openPostgres(ctx, opts.DSN)
	default:
		return openSQLite(ctx, opts.Path)
	}
}

func openSQLite(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is empty")
	}

	fresh := dbPath == MemoryPath
	dsn := MemoryPath
	if !fresh {
		_, err := os.Stat(dbPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			fresh = true
		case err != nil:
			return nil, fmt.Errorf("failed to stat database: %w", err)
		}

		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", dbPath)
	}

	db, err := sql.Open(SQLite.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pin(db)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, dialect: SQLite, fresh: fresh}, nil
}

func openPostgres(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}

	db, err := sql.Open(Postgres.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pin(db)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var tables int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`,
		Table,
	).Scan(&tables)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to inspect schema: %w", err)
	}

	return &Store{db: db, dialect: Postgres, fresh: tables == 0}, nil
}

// pin keeps the pool at exactly one long-lived connection. An in-memory
// SQLite database only lives as long as its connection.
func pin(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Ping()
}

// Fresh reports whether the backing store did not exist before Open.
func (s *Store) Fresh() bool {
	return s.fresh
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// DB exposes the handle for DDL tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Prepare compiles query on the store's connection. Bind it to a
// transaction with Tx.StmtContext; the pinned connection means the compiled
// statement is reused rather than prepared again.
func (s *Store) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	return s.db.PrepareContext(ctx, s.dialect.Rebind(query))
}

func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.QueryRow(ctx, "SELECT COUNT(*) FROM "+Table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}
