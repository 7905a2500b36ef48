package replay

import (
	"context"
	"sync"
)

// limiter is a counting semaphore whose capacity can change while slots
// are held. Lowering the limit never revokes held slots; Acquire blocks
// until the in-flight count drops below the current limit.
type limiter struct {
	mu       sync.Mutex
	limit    int
	inFlight int
	changed  chan struct{}
}

func newLimiter(limit int) *limiter {
	return &limiter{limit: limit, changed: make(chan struct{})}
}

// Acquire takes one slot, blocking while the pool is saturated
func (l *limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.inFlight < l.limit {
			l.inFlight++
			l.mu.Unlock()
			return nil
		}
		wait := l.changed
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release returns one slot
func (l *limiter) Release() {
	l.mu.Lock()
	l.inFlight--
	l.notify()
	l.mu.Unlock()
}

// SetLimit changes the capacity for subsequent acquisitions
func (l *limiter) SetLimit(n int) {
	l.mu.Lock()
	l.limit = n
	l.notify()
	l.mu.Unlock()
}

// InFlight returns the number of held slots
func (l *limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// notify wakes every waiter; callers hold mu
func (l *limiter) notify() {
	close(l.changed)
	l.changed = make(chan struct{})
}
