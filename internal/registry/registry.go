// Package registry manages the project list stored under the "projects" key.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tiliavir/kv-time-tracker/internal/guard"
	"github.com/Tiliavir/kv-time-tracker/internal/kv"
	"github.com/Tiliavir/kv-time-tracker/internal/model"
	"github.com/Tiliavir/kv-time-tracker/internal/timelog"
)

// ErrSlugTaken is returned when renaming a project onto an existing slug.
var ErrSlugTaken = errors.New("slug already in use")

// Registry reads and writes the project list.
type Registry struct {
	store kv.Store
	log   *timelog.Log
}

// New returns a Registry. log is used to cascade deletes and renames.
func New(store kv.Store, log *timelog.Log) *Registry {
	return &Registry{store: store, log: log}
}

// List returns the projects in storage order.
func (r *Registry) List(ctx context.Context) ([]model.Project, error) {
	projects, err := kv.GetList[model.Project](ctx, r.store, model.ProjectsKey)
	if err != nil {
		return nil, fmt.Errorf("loading projects: %w", err)
	}
	return projects, nil
}

// Get returns the project with slug.
func (r *Registry) Get(ctx context.Context, slug string) (model.Project, error) {
	projects, err := r.List(ctx)
	if err != nil {
		return model.Project{}, err
	}
	if i := indexOf(projects, slug); i >= 0 {
		return projects[i], nil
	}
	return model.Project{}, fmt.Errorf("project %q: %w", slug, model.ErrNotFound)
}

// Add stores p, replacing any project with the same slug. An empty name
// defaults to the slug and an empty description to "Project <slug>".
func (r *Registry) Add(ctx context.Context, p model.Project) (model.Project, error) {
	if p.Slug == "" {
		return model.Project{}, errors.New("project slug must not be empty")
	}
	if p.Name == "" {
		p.Name = p.Slug
	}
	if p.Description == "" {
		p.Description = "Project " + p.Slug
	}

	projects, err := r.List(ctx)
	if err != nil {
		return model.Project{}, err
	}
	projects = append(without(projects, p.Slug), p)
	if err := r.save(ctx, projects); err != nil {
		return model.Project{}, err
	}
	return p, nil
}

// Update replaces the project stored under slug with p. When p.Slug differs,
// the project's entries move to the new key.
func (r *Registry) Update(ctx context.Context, slug string, p model.Project) (model.Project, error) {
	projects, err := r.List(ctx)
	if err != nil {
		return model.Project{}, err
	}
	i := indexOf(projects, slug)
	if i < 0 {
		return model.Project{}, fmt.Errorf("project %q: %w", slug, model.ErrNotFound)
	}

	updated := projects[i]
	if p.Name != "" {
		updated.Name = p.Name
	}
	if p.Description != "" {
		updated.Description = p.Description
	}
	renamed := p.Slug != "" && p.Slug != slug
	if renamed {
		if indexOf(projects, p.Slug) >= 0 {
			return model.Project{}, fmt.Errorf("project %q: %w", p.Slug, ErrSlugTaken)
		}
		updated.Slug = p.Slug
		if err := r.moveEntries(ctx, slug, p.Slug); err != nil {
			return model.Project{}, err
		}
	}

	projects[i] = updated
	if err := r.save(ctx, projects); err != nil {
		return model.Project{}, err
	}
	if renamed {
		if err := r.log.Drop(ctx, slug); err != nil {
			return model.Project{}, err
		}
	}
	return updated, nil
}

// Remove deletes the project and its entries. The project list is written
// first; a failure while dropping the entries leaves an orphaned
// projects/<slug> key behind.
func (r *Registry) Remove(ctx context.Context, slug string, approval guard.Approval) error {
	if !approval.Valid() {
		return guard.ErrConfirmationDenied
	}
	projects, err := r.List(ctx)
	if err != nil {
		return err
	}
	if indexOf(projects, slug) < 0 {
		return fmt.Errorf("project %q: %w", slug, model.ErrNotFound)
	}
	if err := r.save(ctx, without(projects, slug)); err != nil {
		return err
	}
	return r.log.Drop(ctx, slug)
}

func (r *Registry) moveEntries(ctx context.Context, from, to string) error {
	entries, err := r.log.All(ctx, from)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	return r.log.Replace(ctx, to, entries)
}

func (r *Registry) save(ctx context.Context, projects []model.Project) error {
	if err := kv.PutList(ctx, r.store, model.ProjectsKey, projects); err != nil {
		return fmt.Errorf("saving projects: %w", err)
	}
	return nil
}

func indexOf(projects []model.Project, slug string) int {
	for i, p := range projects {
		if p.Slug == slug {
			return i
		}
	}
	return -1
}

func without(projects []model.Project, slug string) []model.Project {
	kept := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if p.Slug != slug {
			kept = append(kept, p)
		}
	}
	return kept
}
