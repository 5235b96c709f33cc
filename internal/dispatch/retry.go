// Package dispatch implements the queue-backed consumer loops that drive a
// job through LockedForProcessing -> PendingVerification -> Completed (or
// the various failure branches), grounded on the teacher's
// jobmanager.processLoop (spec.md §4.D).
package dispatch

import (
	"math"
	"time"
)

// backoff computes the exponential delay for the attemptNo'th re-enqueue on
// the process queue (spec.md §4.E), grounded on the teacher's watchLoop
// backoff-on-DB-error pattern, generalized and bounded by maxDelay.
func backoff(base, maxDelay time.Duration, attemptNo int) time.Duration {
	if attemptNo < 1 {
		attemptNo = 1
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attemptNo-1)))
	if d > maxDelay {
		return maxDelay
	}
	if d < base {
		return base
	}
	return d
}
