package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/scopeprobe/internal/config"
	"github.com/roach88/scopeprobe/internal/harness"
	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Label    string

	// Sessions allows overriding the session generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Sessions hint.SessionGenerator
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Pass     bool                 `json:"pass"`
	Session  string               `json:"session"`
	Recorded int64                `json:"recorded"`
	Trace    []harness.TraceEvent `json:"trace"`
	Errors   []string             `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario against an instrumented scope tree",
		Long: `Run a scenario file against an instrumented scope tree and print the
published events.

With --db (or store.path in the config) every event is recorded under the
run's session, so it can be traced or replayed later.

Example:
  scopeprobe run ./testdata/scenarios/cart_totals.yaml
  scopeprobe run --db ./feed.db --label checkout ./cart_totals.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record into")
	cmd.Flags().StringVar(&opts.Label, "label", "", "label stored with the recorded session")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cfg, cmd.ErrOrStderr())
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	scenario.Session = sessionFor(scenario, cfg, opts.Sessions)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runOpts := configRunOptions(cfg, logger)

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}
	var rec *store.Recorder
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer closeStore(st, logger)

		rec, err = store.NewRecorder(ctx, st, scenario.Session, labelFor(opts.Label, scenario))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start recording", err)
		}
		rec.WithLogger(logger)
		runOpts = append(runOpts, harness.WithSink(rec))
	}

	logger.Info("running scenario", "scenario", scenario.Name, "session", scenario.Session)
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	out := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Session:  result.Session,
		Trace:    result.Trace,
		Errors:   result.Errors,
	}
	if rec != nil {
		out.Recorded = rec.Written()
		if err := rec.Err(); err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to record events", err)
		}
	}

	if opts.Format == "json" {
		if err := formatter.SessionSuccess(out.Session, out); err != nil {
			return err
		}
	} else {
		printRun(cmd.OutOrStdout(), out)
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

// configRunOptions hands the config's host and instrumentation settings to
// the harness. The scenario's own debounce and ttl still win.
func configRunOptions(cfg config.Config, logger *slog.Logger) []harness.Option {
	return []harness.Option{
		harness.WithLogger(logger),
		harness.WithScopeOptions(cfg.ScopeOptions()...),
		harness.WithHintOptions(cfg.HintOptions()...),
	}
}

// sessionFor picks the session a run is stamped with: the scenario's, then
// the config's, then a fresh one.
func sessionFor(scenario *harness.Scenario, cfg config.Config, gen hint.SessionGenerator) string {
	if scenario.Session != "" {
		return scenario.Session
	}
	if cfg.Session != "" {
		return cfg.Session
	}
	if gen == nil {
		gen = hint.UUIDv7Generator{}
	}
	return gen.Generate()
}

func labelFor(label string, scenario *harness.Scenario) string {
	if label != "" {
		return label
	}
	return scenario.Name
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing database", "error", err)
	}
}

func printRun(w io.Writer, out RunResult) {
	fmt.Fprintf(w, "Scenario: %s\n", out.Scenario)
	fmt.Fprintf(w, "Session:  %s\n", out.Session)
	if out.Recorded > 0 {
		fmt.Fprintf(w, "Recorded: %d events\n", out.Recorded)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Events ===")
	if len(out.Trace) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range out.Trace {
		fmt.Fprintf(w, "  [%d] %s %s\n", ev.Seq, ev.Type, ev.Payload)
	}
	fmt.Fprintln(w)

	if out.Pass {
		fmt.Fprintln(w, "✓ PASS")
		return
	}
	fmt.Fprintln(w, "✗ FAIL")
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
