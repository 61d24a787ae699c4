package timeutil

import "time"

// RawToMS converts a raw profiler time, stored in hundredths of a microsecond,
// to milliseconds. The expression is kept as raw*10/1000.0 so values match
// the ones produced by the in-game tools bit for bit.
func RawToMS(raw int64) float64 {
	return float64(raw*10) / 1000.0
}

// RawFloatToMS is RawToMS for values that are already fractional, such as
// per-call averages.
func RawFloatToMS(raw float64) float64 {
	return raw * 10 / 1000.0
}

// RawToNS converts a raw profiler time to nanoseconds.
func RawToNS(raw int64) uint64 {
	if raw < 0 {
		return 0
	}
	return uint64(raw) * 10
}

// MicrosToMS converts a frame timestamp, stored in microseconds, to
// milliseconds.
func MicrosToMS(us int64) float64 {
	return float64(us) / 1000.0
}

// MicrosToDuration converts a frame timestamp delta to a time.Duration.
func MicrosToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
