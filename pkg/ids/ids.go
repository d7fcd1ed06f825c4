// Package ids provides the time and identifier primitives shared by every
// core component: monotonic wall-clock milliseconds and random 128-bit ids.
package ids

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var lastMs int64

// NowMs returns the current wall-clock time in Unix milliseconds. It is
// monotone from the caller's perspective: if the system clock regresses,
// the last-seen value plus one is returned instead.
func NowMs() int64 {
	now := time.Now().UnixMilli()
	for {
		last := atomic.LoadInt64(&lastMs)
		next := now
		if next <= last {
			next = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastMs, last, next) {
			return next
		}
	}
}

// NewID returns a canonically rendered random 128-bit identifier.
func NewID() string {
	return uuid.NewString()
}
