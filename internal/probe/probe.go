// Package probe verifies a load with one indexed lookup of the last
// generated email.
package probe

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

// VerificationError means the probed email has no row. It is a correctness
// failure of the load and is never retried.
type VerificationError struct {
	Email string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("contact not found: %s", e.Email)
}

type Result struct {
	Email   string
	Name    string
	Elapsed time.Duration
}

type Probe struct {
	store  *store.Store
	logger *slog.Logger
}

func New(s *store.Store, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{store: s, logger: logger}
}

// Lookup queries the record generated at position n.
func (p *Probe) Lookup(ctx context.Context, n int) (*Result, error) {
	return p.LookupEmail(ctx, contact.EmailFor(n))
}

func (p *Probe) LookupEmail(ctx context.Context, email string) (*Result, error) {
	start := time.Now()

	var name sql.NullString
	err := p.store.QueryRow(ctx, store.SelectByEmail, email).Scan(&name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("selection query failed: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) || !name.Valid || name.String == "" {
		p.logger.Error("Contact not found", "email", email)
		return nil, &VerificationError{Email: email}
	}

	elapsed := time.Since(start)
	metrics.SetPhase(metrics.PhaseProbe, elapsed)
	p.logger.Info("Selection query done", "email", email, "elapsed_seconds", elapsed.Seconds())

	return &Result{Email: email, Name: name.String, Elapsed: elapsed}, nil
}
