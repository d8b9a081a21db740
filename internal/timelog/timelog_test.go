package timelog_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Tiliavir/kv-time-tracker/internal/guard"
	"github.com/Tiliavir/kv-time-tracker/internal/kv"
	"github.com/Tiliavir/kv-time-tracker/internal/kv/kvtest"
	"github.com/Tiliavir/kv-time-tracker/internal/model"
	"github.com/Tiliavir/kv-time-tracker/internal/timelog"
)

func newLog(t *testing.T) (*timelog.Log, *kvtest.Server) {
	t.Helper()
	srv := kvtest.NewServer(t)
	c, err := kv.NewClient(context.Background(), kv.Config{
		URL:         srv.URL,
		Namespace:   srv.Namespace,
		Credentials: kv.Credentials{Username: srv.Username, Password: srv.Password},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return timelog.New(c), srv
}

type confirm struct{}

func (confirm) Prompt(string) (string, error) { return guard.DefaultPhrase, nil }

func ptr(s string) *string { return &s }

func TestAllMissingKeyIsEmpty(t *testing.T) {
	log, _ := newLog(t)
	entries, err := log.All(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("All = %#v, want empty slice", entries)
	}
}

func TestAppendAndAllSorted(t *testing.T) {
	ctx := context.Background()
	log, srv := newLog(t)

	for _, e := range []model.TimeEntry{
		{Timestamp: 300, Type: model.Start},
		{Timestamp: 100, Type: model.Start, Description: ptr("first")},
		{Timestamp: 200, Type: model.End},
	} {
		if err := log.Append(ctx, "demo", e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := log.All(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Timestamp != 100 || entries[2].Timestamp != 300 {
		t.Fatalf("All = %+v, want sorted by timestamp", entries)
	}

	raw, ok := srv.Value("projects/demo")
	if !ok {
		t.Fatal("entries not stored under projects/demo")
	}
	var stored []map[string]any
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("stored value is not a JSON array: %v", err)
	}
	if stored[0]["type"] != "start" || stored[0]["description"] != nil {
		t.Errorf("stored entry = %v, want type start with null description", stored[0])
	}
}

func TestDeleteByTimestamp(t *testing.T) {
	ctx := context.Background()
	log, srv := newLog(t)
	srv.Set("projects/demo", `[
		{"timestamp":100,"type":"start","description":null},
		{"timestamp":200,"type":"end","description":null},
		{"timestamp":200,"type":"start","description":null},
		{"timestamp":300,"type":"end","description":null}
	]`)

	removed, err := log.DeleteByTimestamp(ctx, "demo", 200)
	if err != nil {
		t.Fatalf("DeleteByTimestamp: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	entries, _ := log.All(ctx, "demo")
	if len(entries) != 2 {
		t.Errorf("remaining = %+v, want 2 entries", entries)
	}

	if _, err := log.DeleteByTimestamp(ctx, "demo", 999); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("DeleteByTimestamp missing = %v, want ErrNotFound", err)
	}
}

func TestUpdateDescription(t *testing.T) {
	ctx := context.Background()
	log, _ := newLog(t)
	if err := log.Append(ctx, "demo", model.TimeEntry{Timestamp: 10, Type: model.Start}); err != nil {
		t.Fatal(err)
	}

	if err := log.UpdateDescription(ctx, "demo", 10, ptr("planning")); err != nil {
		t.Fatalf("UpdateDescription: %v", err)
	}
	entries, _ := log.All(ctx, "demo")
	if entries[0].Description == nil || *entries[0].Description != "planning" {
		t.Errorf("Description = %v", entries[0].Description)
	}

	if err := log.UpdateDescription(ctx, "demo", 11, nil); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("UpdateDescription missing = %v, want ErrNotFound", err)
	}
}

func TestDeleteAllRequiresApproval(t *testing.T) {
	ctx := context.Background()
	log, srv := newLog(t)
	if err := log.Append(ctx, "demo", model.TimeEntry{Timestamp: 1, Type: model.Start}); err != nil {
		t.Fatal(err)
	}

	if err := log.DeleteAll(ctx, "demo", guard.Approval{}); !errors.Is(err, guard.ErrConfirmationDenied) {
		t.Fatalf("DeleteAll without approval = %v, want ErrConfirmationDenied", err)
	}
	if entries, _ := log.All(ctx, "demo"); len(entries) != 1 {
		t.Fatal("entries changed without approval")
	}

	approval, err := guard.New(confirm{}).Authorize(true, "Delete all entries?")
	if err != nil {
		t.Fatal(err)
	}
	if err := log.DeleteAll(ctx, "demo", approval); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if got, _ := srv.Value("projects/demo"); got != `[]` {
		t.Errorf("stored after DeleteAll = %q, want []", got)
	}
}

func TestDropToleratesMissingKey(t *testing.T) {
	ctx := context.Background()
	log, srv := newLog(t)
	srv.Set("projects/demo", `[]`)

	if err := log.Drop(ctx, "demo"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if _, ok := srv.Value("projects/demo"); ok {
		t.Error("key still present after Drop")
	}
	if err := log.Drop(ctx, "demo"); err != nil {
		t.Errorf("Drop of missing key = %v, want nil", err)
	}
}
