package model

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a project slug or entry timestamp does not exist.
var ErrNotFound = errors.New("not found")

// ProjectsKey is the store key holding the project list.
const ProjectsKey = "projects"

// Project is a tracked project. The slug is its stable identifier.
type Project struct {
	Name        string `json:"name" yaml:"name"`
	Slug        string `json:"slug" yaml:"slug"`
	Description string `json:"description" yaml:"description"`
}

// EntriesKey returns the store key holding the time entries of a project.
func EntriesKey(slug string) string {
	return ProjectsKey + "/" + slug
}

// SlugFromKey extracts the project slug from a projects/<slug> key.
func SlugFromKey(key string) (string, bool) {
	slug, ok := strings.CutPrefix(key, ProjectsKey+"/")
	if !ok || slug == "" {
		return "", false
	}
	return slug, true
}
