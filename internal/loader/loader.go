// Package loader populates the contacts table in fixed-size chunks, one
// transaction and one prepared INSERT per chunk.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bit2swaz/bulkload/internal/contact"
	"github.com/bit2swaz/bulkload/internal/metrics"
	"github.com/bit2swaz/bulkload/internal/store"
)

var ErrInvalidBlockSize = errors.New("block size must be at least 1")

// InsertError reports the record whose insert, or whose chunk's commit,
// failed. The chunk has already been rolled back when it is returned.
type InsertError struct {
	// Position is the 1-based sequence position of the offending record.
	Position int
	// Chunk is the 1-based index of the rolled back chunk.
	Chunk int
	Email string
	Err   error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert failed at position %d (chunk %d, email %q): %v", e.Position, e.Chunk, e.Email, e.Err)
}

func (e *InsertError) Unwrap() error {
	return e.Err
}

type ChunkStats struct {
	Index   int
	Size    int
	Elapsed time.Duration
}

type Report struct {
	Rows          int
	Chunks        int
	LastChunkSize int
	Elapsed       time.Duration
}

type Option func(*Loader)

// WithObserver registers fn to be called after every committed chunk.
func WithObserver(fn func(ChunkStats)) Option {
	return func(l *Loader) {
		l.observer = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

type Loader struct {
	store    *store.Store
	logger   *slog.Logger
	observer func(ChunkStats)
}

func New(s *store.Store, opts ...Option) *Loader {
	l := &Loader{store: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reset deletes every row so repeated runs start from the same state.
func (l *Loader) Reset(ctx context.Context) error {
	if _, err := l.store.Exec(ctx, store.DeleteAll); err != nil {
		return fmt.Errorf("failed to reset table: %w", err)
	}
	return nil
}

// LoadAll resets the table and inserts every record of seq, blockSize
// records per transaction. The final chunk may be shorter. An empty
// sequence commits nothing. Elapsed covers the inserts, not the reset.
func (l *Loader) LoadAll(ctx context.Context, seq contact.Sequence, blockSize int) (*Report, error) {
	if blockSize < 1 {
		return nil, ErrInvalidBlockSize
	}

	if err := l.Reset(ctx); err != nil {
		return nil, err
	}

	l.logger.Info("Inserting contacts ...", "block_size", blockSize)
	start := time.Now()

	report := &Report{}
	position := 0
	for {
		first, ok := seq.Next()
		if !ok {
			break
		}
		position++

		c := &chunk{index: report.Chunks + 1, start: position}
		if err := l.loadChunk(ctx, c, first, seq, blockSize); err != nil {
			return nil, err
		}
		position = c.start + c.size - 1

		report.Chunks++
		report.Rows += c.size
		report.LastChunkSize = c.size
	}

	report.Elapsed = time.Since(start)
	metrics.SetPhase(metrics.PhaseLoad, report.Elapsed)

	l.logger.Info("Inserted contacts",
		"rows", report.Rows,
		"chunks", report.Chunks,
		"elapsed_seconds", report.Elapsed.Seconds())
	return report, nil
}

type chunk struct {
	index int
	start int
	size  int
}

// loadChunk inserts first plus up to blockSize-1 further records of seq in
// one transaction. Records are pulled from seq as they are inserted.
func (l *Loader) loadChunk(ctx context.Context, c *chunk, first contact.Record, seq contact.Sequence, blockSize int) error {
	began := time.Now()

	stmt, err := l.store.Prepare(ctx, store.InsertContact)
	if err != nil {
		return fmt.Errorf("failed to prepare insert for chunk %d: %w", c.index, err)
	}
	defer stmt.Close()

	tx, err := l.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin chunk %d: %w", c.index, err)
	}
	txStmt := tx.StmtContext(ctx, stmt)

	record := first
	for {
		c.size++
		if _, err := txStmt.ExecContext(ctx, record.Name, record.Email); err != nil {
			l.rollback(tx, c)
			return &InsertError{Position: c.start + c.size - 1, Chunk: c.index, Email: record.Email, Err: err}
		}

		if c.size == blockSize {
			break
		}
		next, ok := seq.Next()
		if !ok {
			break
		}
		record = next
	}

	if err := tx.Commit(); err != nil {
		l.rollback(tx, c)
		return &InsertError{
			Position: c.start + c.size - 1,
			Chunk:    c.index,
			Email:    record.Email,
			Err:      fmt.Errorf("commit failed: %w", err),
		}
	}

	stats := ChunkStats{Index: c.index, Size: c.size, Elapsed: time.Since(began)}
	metrics.ObserveChunk(stats.Size, stats.Elapsed)
	l.logger.Debug("Committed chunk", "chunk", stats.Index, "rows", stats.Size, "elapsed", stats.Elapsed)
	if l.observer != nil {
		l.observer(stats)
	}
	return nil
}

func (l *Loader) rollback(tx *sql.Tx, c *chunk) {
	metrics.IncRollback()
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		l.logger.Error("Failed to roll back chunk", "chunk", c.index, "error", err)
	}
}
