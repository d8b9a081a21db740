// Package export writes every key of the store to its own pretty-printed file.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/kv-time-tracker/internal/kv"
	"github.com/Tiliavir/kv-time-tracker/internal/model"
)

// Format selects the encoding of exported files.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat validates a format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", JSON:
		return JSON, nil
	case YAML, "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want json or yaml)", s)
	}
}

// Template placeholders.
const (
	KeyName     = "{key-name}"
	ProjectName = "{project-name}"
	Timestamp   = "{timestamp}"
)

const timestampLayout = "20060102_150405"

// ErrFileCollision is recorded for a key whose file name is already taken by
// an earlier key in the same export.
var ErrFileCollision = errors.New("export file name already used")

// Options configures an Exporter.
type Options struct {
	// Template is the file name pattern. Empty means "{key-name}.<format>".
	Template string
	Format   Format
	Logger   *slog.Logger
	// Now stamps the {timestamp} placeholder. If nil, time.Now is used.
	Now func() time.Time
}

// Report lists the outcome per key.
type Report struct {
	// Succeeded maps each exported key to the file written for it.
	Succeeded map[string]string
	// Failed maps each key that could not be exported to the reason.
	Failed map[string]error
}

// Exporter dumps the store to a directory.
type Exporter struct {
	store    kv.Store
	template string
	format   Format
	logger   *slog.Logger
	now      func() time.Time
}

// New returns an Exporter reading from store.
func New(store kv.Store, opts Options) *Exporter {
	e := &Exporter{
		store:    store,
		template: opts.Template,
		format:   opts.Format,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if e.format == "" {
		e.format = JSON
	}
	if e.template == "" {
		e.template = KeyName + "." + string(e.format)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// ExportAll writes one file per key into dir, creating it if needed. A failing
// key is logged and recorded in the report; the other keys are still written.
// Keys are processed in sorted order, and a key whose file name was already
// used fails with ErrFileCollision instead of overwriting it.
// The returned error is set only when the key list cannot be read or dir
// cannot be created.
func (e *Exporter) ExportAll(ctx context.Context, dir string) (Report, error) {
	report := Report{Succeeded: map[string]string{}, Failed: map[string]error{}}

	keys, err := e.store.ListKeys(ctx)
	if err != nil {
		return report, fmt.Errorf("listing keys: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report, fmt.Errorf("creating export directory: %w", err)
	}

	now := e.now()
	claimed := map[string]string{}
	slices.Sort(keys)
	for _, key := range keys {
		path := filepath.Join(dir, FileName(e.template, key, now))
		if other, taken := claimed[path]; taken {
			err := fmt.Errorf("%w: %s is written for %s", ErrFileCollision, path, other)
			e.logger.Warn("export skipped", "key", key, "error", err)
			report.Failed[key] = err
			continue
		}
		claimed[path] = key
		if err := e.exportKey(ctx, key, path); err != nil {
			e.logger.Warn("export failed", "key", key, "error", err)
			report.Failed[key] = err
			continue
		}
		e.logger.Debug("exported", "key", key, "file", path)
		report.Succeeded[key] = path
	}
	return report, nil
}

func (e *Exporter) exportKey(ctx context.Context, key, path string) error {
	raw, err := e.store.Get(ctx, key)
	if err != nil {
		return err
	}
	data, err := e.encode(raw)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func (e *Exporter) encode(raw json.RawMessage) ([]byte, error) {
	if e.format == YAML {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding value: %w", err)
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("formatting value: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// FileName expands template for key. {key-name} is the key with path
// separators replaced by underscores, {project-name} is the slug of a
// projects/<slug> key ("all_projects" for the project list, "general"
// otherwise) and {timestamp} is now formatted as 20060102_150405.
func FileName(template, key string, now time.Time) string {
	project := "general"
	if slug, ok := model.SlugFromKey(key); ok {
		project = slug
	} else if key == model.ProjectsKey {
		project = "all_projects"
	}
	r := strings.NewReplacer(
		KeyName, sanitize(key),
		ProjectName, sanitize(project),
		Timestamp, now.Format(timestampLayout),
	)
	return r.Replace(template)
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(s)
}

// writeFile writes data atomically using a temp file and rename.
func writeFile(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
