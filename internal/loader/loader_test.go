package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bit2swaz/bulkload/internal/contact"
	"github.com/bit2swaz/bulkload/internal/schema"
	"github.com/bit2swaz/bulkload/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "contacts.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = schema.NewInitializer(s, nil).EnsureSchema(context.Background())
	require.NoError(t, err)
	return s
}

func emails(t *testing.T, s *store.Store) []string {
	t.Helper()
	rows, err := s.DB().QueryContext(context.Background(), "SELECT email FROM contacts ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var email string
		require.NoError(t, rows.Scan(&email))
		out = append(out, email)
	}
	require.NoError(t, rows.Err())
	return out
}

func expectedEmails(from, to int) []string {
	out := make([]string, 0)
	for i := from; i <= to; i++ {
		out = append(out, contact.EmailFor(i))
	}
	return out
}

func TestLoadAllChunking(t *testing.T) {
	tests := []struct {
		n         int
		blockSize int
	}{
		{0, 1},
		{0, 5},
		{1, 1},
		{1, 10},
		{7, 7},
		{9, 3},
		{10, 3},
		{10, 1000},
		{100, 1},
		{100, 8},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d/block=%d", tt.n, tt.blockSize), func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			var sizes []int
			l := New(s, WithObserver(func(c ChunkStats) {
				sizes = append(sizes, c.Size)
				assert.Equal(t, len(sizes), c.Index)
			}))

			report, err := l.LoadAll(ctx, contact.NewGenerator(tt.n), tt.blockSize)
			require.NoError(t, err)

			wantChunks := (tt.n + tt.blockSize - 1) / tt.blockSize
			assert.Equal(t, tt.n, report.Rows)
			assert.Equal(t, wantChunks, report.Chunks)
			assert.Len(t, sizes, wantChunks)

			if tt.n > 0 {
				wantLast := tt.n - tt.blockSize*((tt.n-1)/tt.blockSize)
				assert.Equal(t, wantLast, report.LastChunkSize)
				assert.Equal(t, wantLast, sizes[len(sizes)-1])
				for _, size := range sizes[:len(sizes)-1] {
					assert.Equal(t, tt.blockSize, size)
				}
			} else {
				assert.Zero(t, report.LastChunkSize)
			}

			count, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.n, count)
			assert.Equal(t, expectedEmails(1, tt.n), emails(t, s))
		})
	}
}

func TestLoadAllTenByThree(t *testing.T) {
	s := newStore(t)

	var sizes []int
	l := New(s, WithObserver(func(c ChunkStats) { sizes = append(sizes, c.Size) }))

	report, err := l.LoadAll(context.Background(), contact.NewGenerator(10), 3)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 3, 1}, sizes)
	assert.Equal(t, 4, report.Chunks)
	assert.Equal(t, 10, report.Rows)
	assert.Positive(t, report.Elapsed)
}

func TestLoadAllResetsBetweenRuns(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	l := New(s)

	for run := 0; run < 2; run++ {
		_, err := l.LoadAll(ctx, contact.NewGenerator(25), 4)
		require.NoError(t, err)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 25, count, "run %d", run+1)
	}
}

func TestLoadAllFailedChunkIsRolledBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// positions 7..9 form chunk 3; position 8 collides with position 2
	records := make([]contact.Record, 0, 12)
	for i := 1; i <= 12; i++ {
		r := contact.At(i)
		if i == 8 {
			r.Email = contact.EmailFor(2)
		}
		records = append(records, r)
	}

	var committed []int
	l := New(s, WithObserver(func(c ChunkStats) { committed = append(committed, c.Index) }))

	report, err := l.LoadAll(ctx, contact.NewSliceSequence(records...), 3)
	require.Error(t, err)
	assert.Nil(t, report)

	var insertErr *InsertError
	require.True(t, errors.As(err, &insertErr))
	assert.Equal(t, 8, insertErr.Position)
	assert.Equal(t, 3, insertErr.Chunk)
	assert.Equal(t, contact.EmailFor(2), insertErr.Email)
	assert.ErrorContains(t, err, "UNIQUE")

	assert.Equal(t, []int{1, 2}, committed)
	assert.Equal(t, expectedEmails(1, 6), emails(t, s), "chunks before the failure stay committed, chunk 3 is absent")
}

func TestLoadAllCollisionInFirstRecordOfChunk(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	records := []contact.Record{contact.At(1), contact.At(2), contact.At(1)}
	_, err := New(s).LoadAll(ctx, contact.NewSliceSequence(records...), 2)

	var insertErr *InsertError
	require.True(t, errors.As(err, &insertErr))
	assert.Equal(t, 3, insertErr.Position)
	assert.Equal(t, 2, insertErr.Chunk)
	assert.Equal(t, expectedEmails(1, 2), emails(t, s))
}

func TestLoadAllRejectsInvalidBlockSize(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Exec(ctx, store.InsertContact, "keep", "keep@domain.tld")
	require.NoError(t, err)

	for _, blockSize := range []int{0, -1} {
		_, err := New(s).LoadAll(ctx, contact.NewGenerator(5), blockSize)
		assert.ErrorIs(t, err, ErrInvalidBlockSize)
	}

	assert.Equal(t, []string{"keep@domain.tld"}, emails(t, s), "table must not be reset on invalid input")
}

func TestLoadAllWithoutSchema(t *testing.T) {
	s, err := store.New(store.MemoryPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = New(s).LoadAll(context.Background(), contact.NewGenerator(3), 2)
	assert.ErrorContains(t, err, "failed to reset table")
}

func TestLoadAllCanceledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(s).LoadAll(ctx, contact.NewGenerator(3), 2)
	assert.Error(t, err)
}

func TestLoadAllCommitFailureRollsBackChunk(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// the foreign key is only checked at COMMIT, so inserting email-5 makes
	// chunk 2 (positions 4..6) fail to commit
	for _, ddl := range []string{
		"CREATE TABLE audit_parents (email TEXT PRIMARY KEY)",
		"CREATE TABLE audit (email TEXT REFERENCES audit_parents(email) DEFERRABLE INITIALLY DEFERRED)",
		`CREATE TRIGGER contacts_audit AFTER INSERT ON contacts
		 WHEN NEW.email = 'email-5@domain.tld'
		 BEGIN INSERT INTO audit (email) VALUES (NEW.email); END`,
	} {
		_, err := s.Exec(ctx, ddl)
		require.NoError(t, err)
	}

	var committed []int
	l := New(s, WithObserver(func(c ChunkStats) { committed = append(committed, c.Index) }))

	report, err := l.LoadAll(ctx, contact.NewGenerator(9), 3)
	require.Error(t, err)
	assert.Nil(t, report)

	var insertErr *InsertError
	require.True(t, errors.As(err, &insertErr))
	assert.Equal(t, 6, insertErr.Position, "a commit failure points at the chunk's last record")
	assert.Equal(t, 2, insertErr.Chunk)
	assert.Equal(t, contact.EmailFor(6), insertErr.Email)
	assert.ErrorContains(t, err, "commit failed")
	assert.ErrorContains(t, err, "FOREIGN KEY")

	assert.Equal(t, []int{1}, committed)
	assert.Equal(t, expectedEmails(1, 3), emails(t, s), "no row of the failed chunk may be visible")

	var audited int
	require.NoError(t, s.QueryRow(ctx, "SELECT COUNT(*) FROM audit").Scan(&audited))
	assert.Zero(t, audited)
}
