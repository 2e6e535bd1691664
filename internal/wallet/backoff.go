package wallet

import "time"

// Backoff returns how long to wait before the given retry attempt. attempt
// starts at 1 for the first retry.
type Backoff func(attempt int) time.Duration

// LinearBackoff waits base, 2*base, 3*base, ...
func LinearBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// ExponentialBackoff waits base, 2*base, 4*base, ...
func ExponentialBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(1<<uint(attempt-1))
	}
}

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration { return 0 }
