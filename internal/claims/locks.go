package claims

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrResolutionContended means the per-shift lock was not acquired within
// the wait budget. The operation is safe to retry.
var ErrResolutionContended = errors.New("shift resolution contended")

// shiftLocks serializes claim resolution per shift ID. Entries are
// refcounted and dropped when the last waiter releases, keeping the map
// bounded by the number of shifts resolving at once.
type shiftLocks struct {
	wait time.Duration

	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newShiftLocks(wait time.Duration) *shiftLocks {
	return &shiftLocks{wait: wait, entries: make(map[string]*lockEntry)}
}

// acquire blocks up to the wait budget for exclusive hold of the shift's
// lock. The returned release function must be called once the critical
// section ends; calling it more than once is a no-op.
func (l *shiftLocks) acquire(ctx context.Context, shiftID string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[shiftID]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[shiftID] = e
	}
	e.refs++
	l.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		l.put(shiftID, e)
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, ErrResolutionContended
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.sem.Release(1)
			l.put(shiftID, e)
		})
	}
	return release, nil
}

func (l *shiftLocks) put(shiftID string, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, shiftID)
	}
	l.mu.Unlock()
}
