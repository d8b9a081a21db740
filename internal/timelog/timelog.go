// Package timelog stores the append-only start/end log of each project under
// the key projects/<slug>.
package timelog

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tiliavir/kv-time-tracker/internal/guard"
	"github.com/Tiliavir/kv-time-tracker/internal/kv"
	"github.com/Tiliavir/kv-time-tracker/internal/model"
)

// Log reads and writes time entries through a kv.Store. Every write is a
// read-modify-write of the whole list and is not atomic against other writers.
type Log struct {
	store kv.Store
}

// New returns a Log backed by store.
func New(store kv.Store) *Log {
	return &Log{store: store}
}

// Append adds entry to the project's log.
func (l *Log) Append(ctx context.Context, slug string, entry model.TimeEntry) error {
	entries, err := l.load(ctx, slug)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	return l.save(ctx, slug, entries)
}

// All returns the project's entries sorted by timestamp, End before Start on ties.
// A project without entries yields an empty slice.
func (l *Log) All(ctx context.Context, slug string) ([]model.TimeEntry, error) {
	entries, err := l.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	return model.SortEntries(entries), nil
}

// DeleteByTimestamp removes every entry with exactly timestamp ts and returns
// how many were removed.
func (l *Log) DeleteByTimestamp(ctx context.Context, slug string, ts int64) (int, error) {
	entries, err := l.load(ctx, slug)
	if err != nil {
		return 0, err
	}
	kept := make([]model.TimeEntry, 0, len(entries))
	for _, e := range entries {
		if e.Timestamp != ts {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, fmt.Errorf("entry at %d in %s: %w", ts, slug, model.ErrNotFound)
	}
	if err := l.save(ctx, slug, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// UpdateDescription sets the description of every entry at timestamp ts.
// A nil description clears it.
func (l *Log) UpdateDescription(ctx context.Context, slug string, ts int64, description *string) error {
	entries, err := l.load(ctx, slug)
	if err != nil {
		return err
	}
	found := false
	for i := range entries {
		if entries[i].Timestamp == ts {
			entries[i].Description = description
			found = true
		}
	}
	if !found {
		return fmt.Errorf("entry at %d in %s: %w", ts, slug, model.ErrNotFound)
	}
	return l.save(ctx, slug, entries)
}

// DeleteAll empties the project's log. It refuses to run without an approval
// from a guard.Guard.
func (l *Log) DeleteAll(ctx context.Context, slug string, approval guard.Approval) error {
	if !approval.Valid() {
		return guard.ErrConfirmationDenied
	}
	return l.save(ctx, slug, nil)
}

// Replace overwrites the project's log with entries.
func (l *Log) Replace(ctx context.Context, slug string, entries []model.TimeEntry) error {
	return l.save(ctx, slug, entries)
}

// Drop deletes the project's log key. A missing key is not an error.
func (l *Log) Drop(ctx context.Context, slug string) error {
	err := l.store.Delete(ctx, model.EntriesKey(slug))
	if err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
		return fmt.Errorf("dropping entries of %s: %w", slug, err)
	}
	return nil
}

func (l *Log) load(ctx context.Context, slug string) ([]model.TimeEntry, error) {
	entries, err := kv.GetList[model.TimeEntry](ctx, l.store, model.EntriesKey(slug))
	if err != nil {
		return nil, fmt.Errorf("loading entries of %s: %w", slug, err)
	}
	return entries, nil
}

func (l *Log) save(ctx context.Context, slug string, entries []model.TimeEntry) error {
	if err := kv.PutList(ctx, l.store, model.EntriesKey(slug), entries); err != nil {
		return fmt.Errorf("saving entries of %s: %w", slug, err)
	}
	return nil
}
