package placement

import "time"

const maxBackoff = 60 * time.Second

// backoffDelay returns the delay before retry attempt n (0-based):
// base * 2^n, capped at maxBackoff.
func backoffDelay(n int, base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if n < 0 {
		return base
	}
	// 2^30 seconds already dwarfs the cap.
	if n > 30 {
		return maxBackoff
	}
	d := base * time.Duration(1<<uint(n))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
