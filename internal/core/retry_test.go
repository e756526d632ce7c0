package core

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// flakyStore fails the first n calls of each kind with err.
type flakyStore struct {
	Store
	err         error
	failFinds   int32
	failInserts int32
	finds       atomic.Int32
	inserts     atomic.Int32
}

func (s *flakyStore) Find(ctx context.Context, table Table, filter Filter) ([]Record, error) {
	if s.finds.Add(1) <= s.failFinds {
		return nil, s.err
	}
	return s.Store.Find(ctx, table, filter)
}

func (s *flakyStore) Insert(ctx context.Context, table Table, record Record) (Record, error) {
	if s.inserts.Add(1) <= s.failInserts {
		return nil, s.err
	}
	return s.Store.Insert(ctx, table, record)
}

func fastRetry(t *testing.T) {
	t.Helper()
	prev := readRetryDelay
	readRetryDelay = time.Millisecond
	t.Cleanup(func() { readRetryDelay = prev })
}

func connReset() error {
	return &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}
}

func TestGuardedStore_RetriesTransientRead(t *testing.T) {
	fastRetry(t)
	inner := &flakyStore{Store: NewMemoryStore(), err: connReset(), failFinds: 1}
	g := newGuardedStore(inner, time.Second)

	rows, err := g.Find(context.Background(), TableCustomers, nil)
	if err != nil {
		t.Fatalf("Find() error = %v, want success on retry", err)
	}
	if rows == nil {
		t.Error("Find() returned nil rows")
	}
	if n := inner.finds.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestGuardedStore_RetriesReadOnlyOnce(t *testing.T) {
	fastRetry(t)
	inner := &flakyStore{Store: NewMemoryStore(), err: connReset(), failFinds: 5}
	g := newGuardedStore(inner, time.Second)

	if _, err := g.Find(context.Background(), TableCustomers, nil); err == nil {
		t.Fatal("Find() error = nil, want failure after retry")
	}
	if n := inner.finds.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestGuardedStore_NeverRetriesMutations(t *testing.T) {
	fastRetry(t)
	inner := &flakyStore{Store: NewMemoryStore(), err: connReset(), failInserts: 1}
	g := newGuardedStore(inner, time.Second)

	if _, err := g.Insert(context.Background(), TableCustomers, Record{ColName: "x"}); err == nil {
		t.Fatal("Insert() error = nil, want the first failure")
	}
	if n := inner.inserts.Load(); n != 1 {
		t.Errorf("insert attempts = %d, want 1", n)
	}
}

func TestGuardedStore_DoesNotRetryServerErrors(t *testing.T) {
	fastRetry(t)
	inner := &flakyStore{
		Store:     NewMemoryStore(),
		err:       &pgconn.PgError{Code: "42501", Message: "permission denied for table customers"},
		failFinds: 1,
	}
	g := newGuardedStore(inner, time.Second)

	if _, err := g.Find(context.Background(), TableCustomers, nil); err == nil {
		t.Fatal("Find() error = nil, want permission error")
	}
	if n := inner.finds.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestGuardedStore_AppliesTimeout(t *testing.T) {
	g := newGuardedStore(&slowStore{Store: NewMemoryStore()}, 10*time.Millisecond)

	_, err := g.Insert(context.Background(), TableCustomers, Record{ColName: "x"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Insert() error = %v, want context.DeadlineExceeded", err)
	}
}

// slowStore blocks each insert until its context expires.
type slowStore struct{ Store }

func (s *slowStore) Insert(ctx context.Context, table Table, record Record) (Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestIsTransient(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name   string
		parent context.Context
		err    error
		want   bool
	}{
		{"nil", context.Background(), nil, false},
		{"network", context.Background(), connReset(), true},
		{"operation deadline", context.Background(), context.DeadlineExceeded, true},
		{"server error", context.Background(), &pgconn.PgError{Code: "23505"}, false},
		{"unknown table", context.Background(), ErrUnknownTable, false},
		{"record not found", context.Background(), ErrRecordNotFound, false},
		{"plain error", context.Background(), errors.New("boom"), false},
		{"parent cancelled", cancelled, connReset(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.parent, tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
