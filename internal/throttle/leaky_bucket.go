// Package throttle provides the time-based admission control used to
// pace scheduler-to-runner submissions.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// LeakyBucket admits up to `size` callers as a burst, then one per drip
// interval. Admissions are FIFO: a throttled caller completes its
// admission before any later caller enters.
type LeakyBucket struct {
	mu         sync.Mutex
	clock      quartz.Clock
	size       int
	drip       time.Duration
	admissions []time.Time
}

// NewLeakyBucket builds a bucket with burst capacity `size` dripping at
// `requestsPerMinute`.
func NewLeakyBucket(size, requestsPerMinute int) *LeakyBucket {
	return NewLeakyBucketWithClock(size, requestsPerMinute, quartz.NewReal())
}

// NewLeakyBucketWithClock injects the clock, for tests.
func NewLeakyBucketWithClock(size, requestsPerMinute int, clock quartz.Clock) *LeakyBucket {
	// A zeroed rate would divide by zero; a zeroed size could never admit.
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	if size < 1 {
		size = 1
	}
	return &LeakyBucket{
		clock: clock,
		size:  size,
		drip:  time.Minute / time.Duration(requestsPerMinute),
	}
}

// Throttle blocks until the caller is admitted or ctx is done. A
// cancelled waiter is released without being admitted.
func (b *LeakyBucket) Throttle(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.purge()

	if len(b.admissions) >= b.size {
		next := b.admissions[len(b.admissions)-1].Add(b.drip)
		if wait := next.Sub(b.clock.Now()); wait > 0 {
			timer := b.clock.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
		b.purge()
	}

	b.admissions = append(b.admissions, b.clock.Now())
	return nil
}

// purge drops admissions older than the bucket window.
func (b *LeakyBucket) purge() {
	cutoff := b.clock.Now().Add(-time.Duration(b.size) * b.drip)
	kept := b.admissions[:0]
	for _, t := range b.admissions {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.admissions = kept
}
