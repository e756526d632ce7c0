package core

// retry.go bounds every storage call with a timeout and retries reads once.
//
// Mutations are never retried: an insert whose response was lost may already
// be committed, and a second attempt would create a duplicate record.
// Authorization and constraint failures are never retried either; only
// connection-level and timeout failures count as transient.

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultOperationTimeout bounds a single storage call when none is configured.
const DefaultOperationTimeout = 15 * time.Second

// readRetryDelay is the pause before the single read retry.
var readRetryDelay = 200 * time.Millisecond

// guardedStore wraps a Store with per-call timeouts and a single read retry.
type guardedStore struct {
	inner   Store
	timeout time.Duration
}

func newGuardedStore(inner Store, timeout time.Duration) *guardedStore {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	return &guardedStore{inner: inner, timeout: timeout}
}

func (g *guardedStore) Find(ctx context.Context, table Table, filter Filter) ([]Record, error) {
	var (
		rows []Record
		err  error
	)
	for attempt := 1; attempt <= 2; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, g.timeout)
		rows, err = g.inner.Find(opCtx, table, filter)
		cancel()

		if err == nil || attempt == 2 || !isTransient(ctx, err) {
			break
		}

		slog.Warn("storage read failed, retrying once",
			"table", table,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(readRetryDelay):
		}
	}
	return rows, err
}

func (g *guardedStore) Insert(ctx context.Context, table Table, record Record) (Record, error) {
	opCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.inner.Insert(opCtx, table, record)
}

func (g *guardedStore) Update(ctx context.Context, table Table, id string, patch Record) (Record, error) {
	opCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.inner.Update(opCtx, table, id, patch)
}

// isTransient reports whether err is worth one more read attempt.
// A cancelled parent context is never transient.
func isTransient(parent context.Context, err error) bool {
	if err == nil || parent.Err() != nil {
		return false
	}
	if errors.Is(err, ErrUnknownTable) || errors.Is(err, ErrRecordNotFound) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Server-side errors (constraints, permissions, syntax) are final.
		return false
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
