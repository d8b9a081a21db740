package model

import (
	"fmt"
	"sort"
)

// EntryType marks a time entry as opening or closing a session.
type EntryType int

const (
	// Start opens a session.
	Start EntryType = iota + 1
	// End closes the currently open session.
	End
)

// String returns the wire name of the entry type ("start" or "end").
func (t EntryType) String() string {
	switch t {
	case Start:
		return "start"
	case End:
		return "end"
	default:
		return fmt.Sprintf("EntryType(%d)", int(t))
	}
}

// MarshalText encodes the entry type as its wire name.
func (t EntryType) MarshalText() ([]byte, error) {
	switch t {
	case Start, End:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("invalid entry type %d", int(t))
	}
}

// UnmarshalText decodes "start" or "end". Anything else is rejected.
func (t *EntryType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "start":
		*t = Start
	case "end":
		*t = End
	default:
		return fmt.Errorf("invalid entry type %q (want \"start\" or \"end\")", string(text))
	}
	return nil
}

// TimeEntry is a single start or end event stored under projects/<slug>.
type TimeEntry struct {
	Timestamp   int64     `json:"timestamp" yaml:"timestamp"`
	Type        EntryType `json:"type" yaml:"type"`
	Description *string   `json:"description" yaml:"description"`
}

// SortEntries returns a copy of entries ordered by timestamp. Entries sharing a
// timestamp are ordered End before Start; the relative order of otherwise equal
// entries is preserved.
func SortEntries(entries []TimeEntry) []TimeEntry {
	sorted := make([]TimeEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp != sorted[j].Timestamp {
			return sorted[i].Timestamp < sorted[j].Timestamp
		}
		return sorted[i].Type == End && sorted[j].Type == Start
	})
	return sorted
}
