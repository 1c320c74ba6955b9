package limiter

import (
	"context"
	"sync"
	"time"
)

// DurationLimiter allows an operation to run limit times in every window of
// duration. Callers that exceed the budget wait for the window to reset.
type DurationLimiter struct {
	mu sync.Mutex

	name     string
	limit    int32
	duration time.Duration

	resetsAt  time.Time
	available int32

	now func() time.Time
}

// NewDurationLimiter creates a DurationLimiter.
func NewDurationLimiter(name string, limit int32, duration time.Duration) *DurationLimiter {
	return &DurationLimiter{
		name:     name,
		limit:    limit,
		duration: duration,
		now:      time.Now,
	}
}

func (l *DurationLimiter) Name() string {
	return l.name
}

// Wait blocks until a slot is available or ctx is done.
func (l *DurationLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := l.take()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available returns the number of slots left in the current window.
func (l *DurationLimiter) Available() int32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(l.now())

	return l.available
}

// Reset starts a new window with a full budget.
func (l *DurationLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetsAt = l.now().Add(l.duration)
	l.available = l.limit
}

func (l *DurationLimiter) take() (wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.refill(now)

	if l.available <= 0 {
		return l.resetsAt.Sub(now), false
	}

	l.available--

	return 0, true
}

func (l *DurationLimiter) refill(now time.Time) {
	if !l.resetsAt.After(now) {
		l.resetsAt = now.Add(l.duration)
		l.available = l.limit
	}
}
