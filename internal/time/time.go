package time

import (
	"time"
)

// FromMilli converts the exchange millisecond timestamp to utc time.
func FromMilli(milli int64) time.Time {
	return time.UnixMilli(milli).UTC()
}

// ToMilli converts the time to a millisecond timestamp.
func ToMilli(t time.Time) int64 {
	return t.UnixMilli()
}

// Close returns the close time of the bar opened at the given time.
func Close(open time.Time, span time.Duration) time.Time {
	return open.Add(span)
}

// Closed checks if the bar opened at the given time is closed at the reference time.
func Closed(open time.Time, span time.Duration, now time.Time) bool {
	return !Close(open, span).After(now)
}
