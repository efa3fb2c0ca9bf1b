package workflow

import (
	"math/rand/v2"
	"time"
)

// backoffDelay computes the hold-off before the next attempt: exponential in
// the attempt number with full jitter, so concurrent retries spread out
// instead of thundering back together.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if max <= 0 {
		max = time.Minute
	}
	if attempt < 1 {
		attempt = 1
	}

	ceiling := base
	for i := 1; i < attempt; i++ {
		ceiling *= 2
		if ceiling >= max || ceiling <= 0 {
			ceiling = max
			break
		}
	}
	if ceiling > max {
		ceiling = max
	}
	return time.Duration(rand.Int64N(int64(ceiling) + 1))
}
