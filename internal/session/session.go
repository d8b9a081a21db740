// Package session derives whether a project is being tracked from its entry
// log and guards start/end transitions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Tiliavir/kv-time-tracker/internal/model"
	"github.com/Tiliavir/kv-time-tracker/internal/timelog"
)

var (
	// ErrAlreadyRunning is returned by Start while a session is open.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrNotRunning is returned by End while no session is open.
	ErrNotRunning = errors.New("no running session")
)

// State is the folded status of a project.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// AnomalyKind classifies an out-of-sequence entry.
type AnomalyKind int

const (
	StartWhileRunning AnomalyKind = iota + 1
	EndWhileIdle
)

func (k AnomalyKind) String() string {
	switch k {
	case StartWhileRunning:
		return "start while running"
	case EndWhileIdle:
		return "end while idle"
	default:
		return fmt.Sprintf("AnomalyKind(%d)", int(k))
	}
}

// Anomaly is an entry that does not fit the alternating start/end sequence.
type Anomaly struct {
	Kind      AnomalyKind
	Timestamp int64
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s at %d", a.Kind, a.Timestamp)
}

// SequenceError reports anomalies found while strict mode is on.
type SequenceError struct {
	Slug      string
	Anomalies []Anomaly
}

func (e *SequenceError) Error() string {
	parts := make([]string, len(e.Anomalies))
	for i, a := range e.Anomalies {
		parts[i] = a.String()
	}
	return fmt.Sprintf("entry sequence anomaly in %s: %s", e.Slug, strings.Join(parts, ", "))
}

// Result is the outcome of folding a project's entries.
type Result struct {
	State State
	// Since is the timestamp of the open Start when State is Running.
	Since     *int64
	Anomalies []Anomaly
}

// Status folds entries in timestamp order. A Start while running restarts the
// session at the later timestamp; an End while idle is ignored. Both are
// reported as anomalies.
func Status(entries []model.TimeEntry) Result {
	var r Result
	for _, e := range model.SortEntries(entries) {
		switch e.Type {
		case model.Start:
			if r.State == Running {
				r.Anomalies = append(r.Anomalies, Anomaly{Kind: StartWhileRunning, Timestamp: e.Timestamp})
			}
			ts := e.Timestamp
			r.State = Running
			r.Since = &ts
		case model.End:
			if r.State == Idle {
				r.Anomalies = append(r.Anomalies, Anomaly{Kind: EndWhileIdle, Timestamp: e.Timestamp})
				continue
			}
			r.State = Idle
			r.Since = nil
		}
	}
	return r
}

// Options configures a Tracker.
type Options struct {
	// Strict turns sequence anomalies into a *SequenceError instead of a warning.
	Strict bool
	// Logger receives anomaly warnings. If nil, slog.Default() is used.
	Logger *slog.Logger
	// Now is the clock used for new entries. If nil, time.Now is used.
	Now func() time.Time
}

// Tracker starts and ends sessions on top of a timelog.Log.
type Tracker struct {
	log    *timelog.Log
	strict bool
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker returns a Tracker writing to log.
func NewTracker(log *timelog.Log, opts Options) *Tracker {
	t := &Tracker{log: log, strict: opts.Strict, logger: opts.Logger, now: opts.Now}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// Status returns the folded status of slug.
func (t *Tracker) Status(ctx context.Context, slug string) (Result, error) {
	entries, err := t.log.All(ctx, slug)
	if err != nil {
		return Result{}, err
	}
	return t.Check(slug, entries)
}

// Check folds entries already loaded for slug. Anomalies are logged, or
// returned as a *SequenceError in strict mode.
func (t *Tracker) Check(slug string, entries []model.TimeEntry) (Result, error) {
	r := Status(entries)
	if err := t.check(slug, r); err != nil {
		return r, err
	}
	return r, nil
}

// Start appends a start entry at the current time.
func (t *Tracker) Start(ctx context.Context, slug string, description *string) (model.TimeEntry, error) {
	r, err := t.Status(ctx, slug)
	if err != nil {
		return model.TimeEntry{}, err
	}
	if r.State == Running {
		return model.TimeEntry{}, fmt.Errorf("%s since %d: %w", slug, *r.Since, ErrAlreadyRunning)
	}
	entry := model.TimeEntry{Timestamp: t.now().Unix(), Type: model.Start, Description: description}
	if err := t.log.Append(ctx, slug, entry); err != nil {
		return model.TimeEntry{}, err
	}
	return entry, nil
}

// End appends an end entry at the current time and returns it together with
// the timestamp of the Start it closes.
func (t *Tracker) End(ctx context.Context, slug string, description *string) (model.TimeEntry, int64, error) {
	r, err := t.Status(ctx, slug)
	if err != nil {
		return model.TimeEntry{}, 0, err
	}
	if r.State != Running {
		return model.TimeEntry{}, 0, fmt.Errorf("%s: %w", slug, ErrNotRunning)
	}
	entry := model.TimeEntry{Timestamp: t.now().Unix(), Type: model.End, Description: description}
	if err := t.log.Append(ctx, slug, entry); err != nil {
		return model.TimeEntry{}, 0, err
	}
	return entry, *r.Since, nil
}

func (t *Tracker) check(slug string, r Result) error {
	if len(r.Anomalies) == 0 {
		return nil
	}
	if t.strict {
		return &SequenceError{Slug: slug, Anomalies: r.Anomalies}
	}
	for _, a := range r.Anomalies {
		t.logger.Warn("entry sequence anomaly",
			"project", slug,
			"kind", a.Kind.String(),
			"timestamp", a.Timestamp,
		)
	}
	return nil
}
