package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Tiliavir/kv-time-tracker/internal/config"
	"github.com/Tiliavir/kv-time-tracker/internal/guard"
	"github.com/Tiliavir/kv-time-tracker/internal/kv"
	"github.com/Tiliavir/kv-time-tracker/internal/logging"
	"github.com/Tiliavir/kv-time-tracker/internal/model"
	"github.com/Tiliavir/kv-time-tracker/internal/registry"
	"github.com/Tiliavir/kv-time-tracker/internal/session"
	"github.com/Tiliavir/kv-time-tracker/internal/storage"
	"github.com/Tiliavir/kv-time-tracker/internal/timelog"
)

var (
	configPath string
	strictMode bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "timetracker",
	Short: "Personal time tracker backed by a remote key-value store",
	Long: `timetracker records start/end events per project in a remote key-value
store and derives running sessions and totals from them.
Configuration lives in ~/.timetracker/config.json.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// app holds the per-invocation wiring built by setup.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	client   *kv.Client
	log      *timelog.Log
	registry *registry.Registry
	tracker  *session.Tracker
	closers  []io.Closer
	stderr   io.Writer
	started  time.Time
}

var current *app

// Execute is the entry point called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	resetFlags(rootCmd)
	current = &app{stderr: stderr, started: time.Now()}
	defer func() {
		for _, c := range current.closers {
			c.Close()
		}
		current = nil
	}()

	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	executed, err := rootCmd.ExecuteContextC(ctx)
	code := exitCode(err)
	if current.logger != nil && executed != nil {
		current.logger.Info("command",
			"command", executed.CommandPath(),
			"outcome", outcome(err),
			"exit_code", code,
			"duration", time.Since(current.started),
		)
	}
	if err != nil {
		fmt.Fprintln(stderr, styleError.Render("Error:"), err)
	}
	return code
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.timetracker/config.json)")
	rootCmd.PersistentFlags().BoolVar(&strictMode, "strict", false, "Fail on out-of-sequence start/end entries")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug diagnostics")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(endCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(timesCmd)
	rootCmd.AddCommand(entryCmd)
	rootCmd.AddCommand(totalCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(syncCmd)
}

// setup loads configuration and wires the store client for the command.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return usageError{err}
	}
	if strictMode {
		cfg.Strict = true
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return usageError{err}
	}
	if verbose {
		level = slog.LevelDebug
	}

	logger, logCloser, logErr := logging.New(logging.Options{
		Stderr: current.stderr,
		Level:  level,
		File:   cfg.Log.File,
	})
	current.closers = append(current.closers, logCloser)
	current.logger = logger
	current.cfg = cfg
	if logErr != nil {
		logger.Warn("command log disabled", "error", logErr)
	}

	if err := cfg.Validate(); err != nil {
		return usageError{err}
	}

	var cache kv.Cache
	if cfg.Cache.File != "" {
		c, err := storage.Open(cfg.Cache.File)
		if err != nil {
			logger.Warn("local cache unavailable, using memory", "error", err)
		} else {
			cache = c
			current.closers = append(current.closers, c)
		}
	}

	client, err := kv.NewClient(cmd.Context(), kv.Config{
		URL:       cfg.Store.URL,
		Namespace: cfg.Store.Namespace,
		Credentials: kv.Credentials{
			Username: cfg.Store.Username,
			Password: cfg.Store.Password,
		},
		TokenFile:  cfg.Store.TokenCache,
		HTTPClient: &http.Client{Timeout: cfg.Store.Timeout},
		Logger:     logger,
		Cache:      cache,
		Retry: kv.RetryPolicy{
			Attempts:  cfg.Store.RetryAttempts,
			BaseDelay: cfg.Store.RetryBaseDelay,
		},
	})
	if err != nil {
		return usageError{err}
	}
	if err := client.Authenticate(cmd.Context()); err != nil && !errors.Is(err, kv.ErrDegradedAuth) {
		return err
	}

	current.client = client
	current.log = timelog.New(client)
	current.registry = registry.New(client, current.log)
	current.tracker = session.NewTracker(current.log, session.Options{
		Strict: cfg.Strict,
		Logger: logger,
	})
	return nil
}

// usageError marks failures caused by the invocation rather than the store.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

func (e usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// usageArgs wraps a cobra argument validator so its errors count as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// exitCode maps an error to the process exit code: 1 for user-level
// conditions, 2 for network and storage failures.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ue usageError
	var se *session.SequenceError
	switch {
	case errors.As(err, &ue),
		errors.As(err, &se),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, session.ErrAlreadyRunning),
		errors.Is(err, session.ErrNotRunning),
		errors.Is(err, guard.ErrConfirmationDenied),
		errors.Is(err, guard.ErrIntentRequired),
		errors.Is(err, registry.ErrSlugTaken):
		return 1
	}
	return 2
}

func outcome(err error) string {
	switch exitCode(err) {
	case 0:
		return "ok"
	case 1:
		return "rejected"
	}
	return "failed"
}

// resetFlags restores every flag to its default so repeated runs in one
// process start clean.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// optional returns nil for an empty string.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
