package utils

import "time"

func TimeNowUTC() time.Time {
	return time.Now().UTC()
}

// NextAfter returns now, or the instant just after prev when the clock has not moved past it.
func NextAfter(prev, now time.Time) time.Time {
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
