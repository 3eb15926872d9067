package store

import "time"

// TimeLayout is a fixed-width UTC layout. Text columns written with it sort
// lexicographically in time order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t for a text timestamp column
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a value written by FormatTime
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}
