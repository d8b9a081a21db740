package registry_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Tiliavir/kv-time-tracker/internal/guard"
	"github.com/Tiliavir/kv-time-tracker/internal/kv"
	"github.com/Tiliavir/kv-time-tracker/internal/kv/kvtest"
	"github.com/Tiliavir/kv-time-tracker/internal/model"
	"github.com/Tiliavir/kv-time-tracker/internal/registry"
	"github.com/Tiliavir/kv-time-tracker/internal/timelog"
)

func newRegistry(t *testing.T) (*registry.Registry, *timelog.Log, *kvtest.Server) {
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
	log := timelog.New(c)
	return registry.New(c, log), log, srv
}

type confirm struct{}

func (confirm) Prompt(string) (string, error) { return guard.DefaultPhrase, nil }

func approve(t *testing.T) guard.Approval {
	t.Helper()
	a, err := guard.New(confirm{}).Authorize(true, "Delete project?")
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestListEmpty(t *testing.T) {
	reg, _, _ := newRegistry(t)
	projects, err := reg.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("List = %+v, want empty", projects)
	}
}

func TestAddFillsDefaults(t *testing.T) {
	reg, _, _ := newRegistry(t)
	p, err := reg.Add(context.Background(), model.Project{Slug: "demo"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if p.Name != "demo" || p.Description != "Project demo" {
		t.Errorf("Add = %+v, want defaults filled", p)
	}
	if _, err := reg.Add(context.Background(), model.Project{}); err == nil {
		t.Error("Add with empty slug: want error")
	}
}

func TestAddIsIdempotentBySlug(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newRegistry(t)

	for _, p := range []model.Project{
		{Slug: "a", Name: "A"},
		{Slug: "b", Name: "B"},
		{Slug: "a", Name: "A2"},
	} {
		if _, err := reg.Add(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	projects, err := reg.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 2 {
		t.Fatalf("List = %+v, want 2 projects", projects)
	}
	if projects[0].Slug != "b" || projects[1].Slug != "a" || projects[1].Name != "A2" {
		t.Errorf("List = %+v, want [b a(A2)]", projects)
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newRegistry(t)
	if _, err := reg.Add(ctx, model.Project{Slug: "a", Name: "Alpha"}); err != nil {
		t.Fatal(err)
	}
	p, err := reg.Get(ctx, "a")
	if err != nil || p.Name != "Alpha" {
		t.Errorf("Get = (%+v, %v)", p, err)
	}
	if _, err := reg.Get(ctx, "zzz"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestRemoveCascadesToEntries(t *testing.T) {
	ctx := context.Background()
	reg, log, srv := newRegistry(t)
	if _, err := reg.Add(ctx, model.Project{Slug: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := log.Append(ctx, "a", model.TimeEntry{Timestamp: 1, Type: model.Start}); err != nil {
		t.Fatal(err)
	}

	if err := reg.Remove(ctx, "a", approve(t)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if projects, _ := reg.List(ctx); len(projects) != 0 {
		t.Errorf("List after Remove = %+v", projects)
	}
	if _, ok := srv.Value("projects/a"); ok {
		t.Error("projects/a still present after Remove")
	}
}

func TestRemoveWithoutEntries(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newRegistry(t)
	if _, err := reg.Add(ctx, model.Project{Slug: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Remove(ctx, "a", approve(t)); err != nil {
		t.Fatalf("Remove of project without entries: %v", err)
	}
}

func TestRemoveErrors(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newRegistry(t)
	if _, err := reg.Add(ctx, model.Project{Slug: "a"}); err != nil {
		t.Fatal(err)
	}

	if err := reg.Remove(ctx, "a", guard.Approval{}); !errors.Is(err, guard.ErrConfirmationDenied) {
		t.Errorf("Remove without approval = %v, want ErrConfirmationDenied", err)
	}
	if err := reg.Remove(ctx, "missing", approve(t)); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Remove missing = %v, want ErrNotFound", err)
	}
	if projects, _ := reg.List(ctx); len(projects) != 1 {
		t.Errorf("List = %+v, want project untouched", projects)
	}
}

func TestUpdateRenameMovesEntries(t *testing.T) {
	ctx := context.Background()
	reg, log, srv := newRegistry(t)
	if _, err := reg.Add(ctx, model.Project{Slug: "old", Name: "Old"}); err != nil {
		t.Fatal(err)
	}
	if err := log.Append(ctx, "old", model.TimeEntry{Timestamp: 5, Type: model.Start}); err != nil {
		t.Fatal(err)
	}

	p, err := reg.Update(ctx, "old", model.Project{Slug: "new", Description: "Renamed"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Slug != "new" || p.Name != "Old" || p.Description != "Renamed" {
		t.Errorf("Update = %+v", p)
	}
	entries, err := log.All(ctx, "new")
	if err != nil || len(entries) != 1 || entries[0].Timestamp != 5 {
		t.Errorf("entries under new slug = (%+v, %v)", entries, err)
	}
	if _, ok := srv.Value("projects/old"); ok {
		t.Error("projects/old still present after rename")
	}
	if _, err := reg.Get(ctx, "old"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get old slug = %v, want ErrNotFound", err)
	}
}

func TestUpdateErrors(t *testing.T) {
	ctx := context.Background()
	reg, _, _ := newRegistry(t)
	for _, slug := range []string{"a", "b"} {
		if _, err := reg.Add(ctx, model.Project{Slug: slug}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := reg.Update(ctx, "zzz", model.Project{Name: "x"}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Update missing = %v, want ErrNotFound", err)
	}
	if _, err := reg.Update(ctx, "a", model.Project{Slug: "b"}); !errors.Is(err, registry.ErrSlugTaken) {
		t.Errorf("Update onto taken slug = %v, want ErrSlugTaken", err)
	}
}
