package delivery

import "time"

// MaxRetries bounds retry cost per delivery; the schedule has one entry per
// retry, capped at the last entry for anything beyond it.
const MaxRetries = 5

var DefaultRetrySchedule = []time.Duration{
	30 * time.Second,
	60 * time.Second,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
}

// RetryDelay returns the backoff before the next attempt given the retry
// count that was just recorded (1-indexed).
func RetryDelay(retryCount int, schedule []time.Duration) time.Duration {
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}

func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
