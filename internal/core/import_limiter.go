package core

// import_limiter.go keeps two imports from running at the same time.
//
// Two executors working on overlapping customers would interleave their
// key-map reads and writes, so the service admits a single import at a time.
// A second request waits up to maxWait for the running import to finish and
// then fails with ErrImportInProgress.
//
// WaitForDrain supports graceful shutdown by blocking until the running
// import completes.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrImportInProgress is returned when another import holds the slot and the
// wait timeout expires. Clients should retry once it has finished.
var ErrImportInProgress = errors.New("another import is in progress, please try again later")

// DefaultImportWait is how long to wait for the running import before rejecting.
const DefaultImportWait = 5 * time.Second

// ImportLimiter admits one import at a time.
type ImportLimiter struct {
	slot    chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	holder string
	since  time.Time
}

// NewImportLimiter creates a limiter whose waiters give up after maxWait.
func NewImportLimiter(maxWait time.Duration) *ImportLimiter {
	if maxWait <= 0 {
		maxWait = DefaultImportWait
	}
	return &ImportLimiter{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the import slot on behalf of holder (typically the actor id).
// Returns ErrImportInProgress if the slot is not freed within maxWait.
// The caller MUST call Release() when the import completes (use defer).
func (l *ImportLimiter) Acquire(ctx context.Context, holder string) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slot <- struct{}{}:
		l.take(holder)
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrImportInProgress
	}
}

// TryAcquire takes the slot without blocking.
func (l *ImportLimiter) TryAcquire(holder string) bool {
	select {
	case l.slot <- struct{}{}:
		l.take(holder)
		return true
	default:
		return false
	}
}

func (l *ImportLimiter) take(holder string) {
	l.mu.Lock()
	l.holder = holder
	l.since = time.Now()
	l.mu.Unlock()
}

// Release frees the slot. Must be called exactly once per successful acquire.
func (l *ImportLimiter) Release() {
	l.mu.Lock()
	l.holder = ""
	l.since = time.Time{}
	l.mu.Unlock()

	<-l.slot
}

// Busy reports whether an import is running.
func (l *ImportLimiter) Busy() bool {
	return len(l.slot) > 0
}

// WaitForDrain blocks until the running import completes or ctx is cancelled.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !l.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ImportLimiterStatus is a snapshot of the limiter's state.
type ImportLimiterStatus struct {
	Busy   bool      `json:"busy"`
	Holder string    `json:"holder,omitempty"`
	Since  time.Time `json:"since,omitzero"`
}

// Status returns the current limiter state for monitoring.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return ImportLimiterStatus{
		Busy:   l.holder != "" || len(l.slot) > 0,
		Holder: l.holder,
		Since:  l.since,
	}
}
