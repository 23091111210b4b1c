package domain

import (
	"regexp"
	"strconv"
	"time"
)

// DefaultTZOffsetMinutes is the fixed UTC offset (UTC+9) applied to naive
// task timestamps when no valid offset is configured.
const DefaultTZOffsetMinutes = 540

// NaiveTimestampLayout is the layout task timestamps are rendered with.
const NaiveTimestampLayout = "2006-01-02 15:04:05"

var naiveTimestampRegex = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})[ T](\d{2}):(\d{2})(?::(\d{2}))?`)

// NormalizeTZOffset returns minutes when it lies within ±24h, and
// DefaultTZOffsetMinutes otherwise.
func NormalizeTZOffset(minutes int) int {
	if minutes < -24*60 || minutes > 24*60 {
		return DefaultTZOffsetMinutes
	}
	return minutes
}

// ParseNaiveTimestamp interprets a naive local timestamp such as
// "2025-01-10 09:00:00" under a fixed UTC offset and returns unix seconds.
// Seconds are optional and trailing text (fractions, zone suffixes) is
// ignored. Out-of-range calendar fields report false.
func ParseNaiveTimestamp(s string, offsetMinutes int) (int64, bool) {
	m := naiveTimestampRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second := 0
	if m[6] != "" {
		second, _ = strconv.Atoi(m[6])
	}

	if month < 1 || month > 12 || hour > 23 || minute > 59 || second > 59 {
		return 0, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Day() != day {
		// day overflowed into the next month
		return 0, false
	}

	offset := NormalizeTZOffset(offsetMinutes)
	return t.Unix() - int64(offset)*60, true
}
