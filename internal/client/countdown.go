package client

import "time"

// Countdown returns the time left until deadline, rounded up to whole
// seconds. It is never negative.
func Countdown(now, deadline time.Time) time.Duration {
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	rounded := left.Truncate(time.Second)
	if rounded < left {
		rounded += time.Second
	}
	return rounded
}

// CanResend reports whether a new code may be requested.
func CanResend(now, resendAt time.Time) bool {
	return !now.Before(resendAt)
}
