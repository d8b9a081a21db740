package timecalc

import (
	"fmt"

	"github.com/Tiliavir/kv-time-tracker/internal/model"
)

// Summary is the result of aggregating a project's time entries.
type Summary struct {
	// Seconds is the sum of all completed Start→End intervals.
	Seconds int64
	// OpenSince is the timestamp of a trailing Start without a matching End.
	OpenSince *int64
	// Unmatched counts End entries that had no open Start to close.
	Unmatched int
}

// Total pairs each Start with the next End in timestamp order and sums the
// completed intervals. A Start that follows another Start reopens the interval
// at the later timestamp. An End without an open Start contributes nothing.
// Intervals never contribute a negative amount.
func Total(entries []model.TimeEntry) Summary {
	var sum Summary
	var open *int64
	for _, e := range model.SortEntries(entries) {
		switch e.Type {
		case model.Start:
			ts := e.Timestamp
			open = &ts
		case model.End:
			if open == nil {
				sum.Unmatched++
				continue
			}
			if d := e.Timestamp - *open; d > 0 {
				sum.Seconds += d
			}
			open = nil
		}
	}
	sum.OpenSince = open
	return sum
}

// FormatDuration formats seconds as a human-readable string like "1h 40m" or "45m" or "30s".
func FormatDuration(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatDurationHHMMSS formats seconds as HH:MM:SS.
func FormatDurationHHMMSS(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatElapsed formats seconds as "1h 2m 3s", dropping leading zero units.
func FormatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
