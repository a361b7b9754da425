package scheduler

import (
	"math/rand"
	"time"
)

// Retry policy for a single child tile's NetworkError: exponential
// backoff with full jitter, base 1s, cap 30s, up to 5 attempts before the
// tile is marked terminally Failed.
const (
	RetryBaseDelay   = time.Second
	RetryCapDelay    = 30 * time.Second
	RetryMaxAttempts = 5
)

// backoffDelay returns a full-jitter delay for the given zero-based retry
// attempt: a uniform random duration in [0, min(cap, base*2^attempt)).
func backoffDelay(attempt int, rnd *rand.Rand) time.Duration {
	mult := int64(1) << uint(attempt)
	if mult <= 0 || mult > int64(RetryCapDelay/RetryBaseDelay) {
		mult = int64(RetryCapDelay / RetryBaseDelay)
	}
	upper := RetryBaseDelay * time.Duration(mult)
	if upper > RetryCapDelay {
		upper = RetryCapDelay
	}
	if upper <= 0 {
		return 0
	}
	return time.Duration(rnd.Int63n(int64(upper)))
}
