package executor

import (
	"errors"
	"sync"
)

// ErrBreakerTripped is returned by guarded calls once the breaker has
// latched open.
var ErrBreakerTripped = errors.New("executor: circuit breaker tripped")

// tripThreshold is the number of consecutive critical broker failures
// that latches the breaker.
const tripThreshold = 3

// Breaker is a latching circuit breaker. Once tripped it stays tripped
// for the process lifetime; recovery requires a manual restart.
type Breaker struct {
	mu       sync.Mutex
	failures int
	tripped  bool
	onTrip   func()
}

// NewBreaker builds a breaker. onTrip fires exactly once, at the moment
// the breaker latches.
func NewBreaker(onTrip func()) *Breaker {
	return &Breaker{onTrip: onTrip}
}

// Tripped reports whether the breaker has latched.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// RecordSuccess resets the consecutive-failure counter. Returns true if
// the counter was non-zero, so callers can log the recovery.
func (b *Breaker) RecordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	recovered := b.failures > 0
	b.failures = 0
	return recovered
}

// RecordCritical counts one critical failure, latching the breaker at
// the threshold. Returns true when this call tripped it.
func (b *Breaker) RecordCritical() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tripped {
		return false
	}
	b.failures++
	if b.failures < tripThreshold {
		return false
	}
	b.tripped = true
	if b.onTrip != nil {
		b.onTrip()
	}
	return true
}

// Trip latches the breaker immediately, bypassing the failure counter.
// Used when the process starts in a state known to be unsafe for
// trading, such as missing broker credentials. No-op if already
// tripped.
func (b *Breaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tripped {
		return
	}
	b.tripped = true
	if b.onTrip != nil {
		b.onTrip()
	}
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
