package stream

import "time"

// Reconnect backoff bounds.
const (
	backoffBase = 1 * time.Second
	backoffCap  = 30 * time.Second
)

// Delay returns how long to wait before the next dial given the number
// of consecutive failures so far. The schedule doubles from 1s and caps
// at 30s: 1s, 2s, 4s, 8s, 16s, 30s, 30s, ...
func Delay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	// 1<<5 seconds already exceeds the cap.
	if attempts >= 5 {
		return backoffCap
	}
	d := backoffBase << uint(attempts)
	if d > backoffCap {
		return backoffCap
	}
	return d
}
