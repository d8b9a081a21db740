package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
)

// Config is the root configuration for timetracker, stored in
// ~/.timetracker/config.json. The file may contain // and /* */ comments.
type Config struct {
	Store  StoreConfig  `mapstructure:"store"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Log    LogConfig    `mapstructure:"log"`
	Export ExportConfig `mapstructure:"export"`
	// Strict turns entry sequence anomalies into errors.
	Strict bool `mapstructure:"strict"`
}

// StoreConfig locates and authenticates against the key-value store.
type StoreConfig struct {
	URL       string `mapstructure:"url"`
	Namespace string `mapstructure:"namespace"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	// TokenCache is where the login token is kept between runs.
	TokenCache     string        `mapstructure:"token_cache"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

// CacheConfig holds the local-mode cache settings.
type CacheConfig struct {
	File string `mapstructure:"file"`
}

// LogConfig holds the command log settings.
type LogConfig struct {
	// File receives one JSON line per command. Empty disables the file.
	File string `mapstructure:"file"`
	// Level is the minimum level printed to stderr.
	Level string `mapstructure:"level"`
}

// ExportConfig holds defaults for the export command.
type ExportConfig struct {
	Dir      string `mapstructure:"dir"`
	Template string `mapstructure:"template"`
	Format   string `mapstructure:"format"`
}

const (
	DefaultTimeout        = 10 * time.Second
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultLogLevel       = "warn"
	DefaultExportDir      = "exports"
	DefaultExportFormat   = "json"
)

// envNames lists the environment variables read for each key, highest
// precedence first.
var envNames = map[string][]string{
	"store.url":              {"TIMETRACKER_STORE_URL", "API_DOMAIN"},
	"store.namespace":        {"TIMETRACKER_STORE_NAMESPACE", "API_PROJECT"},
	"store.username":         {"TIMETRACKER_STORE_USERNAME", "API_USERNAME"},
	"store.password":         {"TIMETRACKER_STORE_PASSWORD", "API_PASSWORD"},
	"store.token_cache":      {"TIMETRACKER_STORE_TOKEN_CACHE", "TOKEN_CACHE_FILE"},
	"store.timeout":          {"TIMETRACKER_STORE_TIMEOUT"},
	"store.retry_attempts":   {"TIMETRACKER_STORE_RETRY_ATTEMPTS"},
	"store.retry_base_delay": {"TIMETRACKER_STORE_RETRY_BASE_DELAY"},
	"cache.file":             {"TIMETRACKER_CACHE_FILE"},
	"log.file":               {"TIMETRACKER_LOG_FILE"},
	"log.level":              {"TIMETRACKER_LOG_LEVEL"},
	"export.dir":             {"TIMETRACKER_EXPORT_DIR"},
	"export.template":        {"TIMETRACKER_EXPORT_TEMPLATE"},
	"export.format":          {"TIMETRACKER_EXPORT_FORMAT"},
	"strict":                 {"TIMETRACKER_STRICT"},
}

// configTemplate is the annotated config written on first run.
const configTemplate = `// timetracker configuration – ~/.timetracker/config.json
//
// Comments are allowed anywhere in this file. Every setting can also be given
// through the environment, e.g. TIMETRACKER_STORE_URL or the short forms noted
// below. Environment values take precedence over this file.
{
  // ── Key-value store ──────────────────────────────────────────────────────
  "store": {
    // Base URL of the store, e.g. "https://kv.example.com". Env: API_DOMAIN
    "url": "",

    // Namespace (project) your data lives under. Env: API_PROJECT
    "namespace": "",

    // Credentials. Prefer API_USERNAME / API_PASSWORD over writing them here.
    "username": "",
    "password": "",

    // Where the login token is cached between runs. Env: TOKEN_CACHE_FILE
    "token_cache": "~/.timetracker/token.json",

    // Per-request timeout and retry policy for transient failures.
    "timeout": "10s",
    "retry_attempts": 3,
    "retry_base_delay": "500ms"
  },

  // ── Local mode ───────────────────────────────────────────────────────────
  // When the store rejects the credentials, reads and writes use this cache.
  // Run 'timetracker sync' to push local changes once access works again.
  "cache": {
    "file": "~/.timetracker/cache.db"
  },

  // ── Logging ──────────────────────────────────────────────────────────────
  "log": {
    // One JSON line per command. Set to "" to disable.
    "file": "~/.timetracker/timetracker.log",
    // Minimum level printed to stderr: debug, info, warn, error.
    "level": "warn"
  },

  // ── Export ───────────────────────────────────────────────────────────────
  "export": {
    "dir": "exports",
    // Placeholders: {key-name}, {project-name}, {timestamp}.
    // Leave empty for "{key-name}.<format>".
    "template": "",
    // json or yaml
    "format": "json"
  },

  // Fail instead of warning when a project's start/end entries are out of sequence.
  "strict": false
}
`

// BaseDir returns ~/.timetracker.
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".timetracker"), nil
}

// DefaultPath returns the path to ~/.timetracker/config.json.
func DefaultPath() (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.json"), nil
}

// Load reads the config file at path (DefaultPath when empty), creating it
// with annotated defaults on first run, and applies environment overrides.
func Load(path string) (Config, error) {
	base, err := BaseDir()
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		path = filepath.Join(base, "config.json")
	}

	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v, base)
	for key, names := range envNames {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("binding environment for %s: %w", key, err)
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := v.ReadConfig(bytes.NewReader(jsonc.ToJSON(data))); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Store.TokenCache = expandHome(cfg.Store.TokenCache)
	cfg.Cache.File = expandHome(cfg.Cache.File)
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.Export.Dir = expandHome(cfg.Export.Dir)
	return cfg, nil
}

func setDefaults(v *viper.Viper, base string) {
	v.SetDefault("store.url", "")
	v.SetDefault("store.namespace", "")
	v.SetDefault("store.username", "")
	v.SetDefault("store.password", "")
	v.SetDefault("store.token_cache", filepath.Join(base, "token.json"))
	v.SetDefault("store.timeout", DefaultTimeout)
	v.SetDefault("store.retry_attempts", DefaultRetryAttempts)
	v.SetDefault("store.retry_base_delay", DefaultRetryBaseDelay)
	v.SetDefault("cache.file", filepath.Join(base, "cache.db"))
	v.SetDefault("log.file", filepath.Join(base, "timetracker.log"))
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("export.dir", DefaultExportDir)
	v.SetDefault("export.template", "")
	v.SetDefault("export.format", DefaultExportFormat)
	v.SetDefault("strict", false)
}

// Validate reports settings the store client cannot work without.
func (c Config) Validate() error {
	var missing []string
	if c.Store.URL == "" {
		missing = append(missing, "store.url (API_DOMAIN)")
	}
	if c.Store.Namespace == "" {
		missing = append(missing, "store.namespace (API_PROJECT)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	if c.Store.RetryAttempts < 1 {
		return fmt.Errorf("store.retry_attempts must be at least 1, got %d", c.Store.RetryAttempts)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("store.timeout must be positive, got %s", c.Store.Timeout)
	}
	return nil
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
