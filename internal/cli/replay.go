package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/scopeprobe/internal/feed"
	"github.com/roach88/scopeprobe/internal/harness"
	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string
}

// ReplayResult holds the replay result for one session.
type ReplayResult struct {
	Session       string `json:"session"`
	Scenario      string `json:"scenario,omitempty"`
	Recorded      int    `json:"recorded"`
	Rerun         int    `json:"rerun,omitempty"`
	Deterministic bool   `json:"deterministic"`
	FirstMismatch int64  `json:"first_mismatch,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [scenario]",
		Short: "Replay a recorded session and verify determinism",
		Long: `Replay the events recorded for a session and verify determinism.

With a scenario, the scenario is run again under the recorded session and
its trace must match the recording event for event. Without one, the
recording is decoded twice and both passes must agree.

Exit codes:
  0 - Replay is deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  scopeprobe replay --db ./feed.db --session cart-session
  scopeprobe replay --db ./feed.db --session cart-session ./cart_totals.yaml
  scopeprobe replay --db ./feed.db --session cart-session --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runReplay(opts, path, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to replay (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cfg, cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer closeStore(st, logger)

	recorded, err := replayTrace(ctx, st, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay session", err)
	}
	if len(recorded) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no events recorded for session %s", opts.Session))
	}

	result := ReplayResult{Session: opts.Session, Recorded: len(recorded)}

	var other []harness.TraceEvent
	if path == "" {
		other, err = replayTrace(ctx, st, opts.Session)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to replay session", err)
		}
	} else {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
		scenario.Session = opts.Session
		run, err := harness.Run(scenario, configRunOptions(cfg, logger)...)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to run scenario", err)
		}
		result.Scenario = scenario.Name
		result.Rerun = len(run.Trace)
		other = run.Trace
	}

	result.FirstMismatch, err = firstMismatch(recorded, other)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compare traces", err)
	}
	result.Deterministic = result.FirstMismatch == 0

	if opts.Format == "json" {
		if err := outputJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd.OutOrStdout(), result)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("replay of %s is not deterministic", opts.Session))
	}
	return nil
}

// replayTrace decodes a recorded session back into a trace.
func replayTrace(ctx context.Context, st *store.Store, session string) ([]harness.TraceEvent, error) {
	var (
		trace  []harness.TraceEvent
		encErr error
	)
	sink := hint.SinkFunc(func(ev hint.Event) {
		env, err := feed.Encode(ev)
		if err != nil {
			if encErr == nil {
				encErr = err
			}
			return
		}
		trace = append(trace, harness.TraceEvent{
			Seq:     int64(len(trace) + 1),
			Type:    env.Type,
			Payload: env.Payload,
		})
	})
	if _, err := st.Replay(ctx, session, sink); err != nil {
		return nil, err
	}
	return trace, encErr
}

// firstMismatch returns the seq of the first event that differs, or 0 when
// both traces are byte-identical. A trace that ends early mismatches at the
// seq after its last event.
func firstMismatch(a, b []harness.TraceEvent) (int64, error) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		x, err := harness.MarshalTrace(a[i : i+1])
		if err != nil {
			return 0, err
		}
		y, err := harness.MarshalTrace(b[i : i+1])
		if err != nil {
			return 0, err
		}
		if !bytes.Equal(x, y) {
			return int64(i + 1), nil
		}
	}
	if len(a) != len(b) {
		return int64(n + 1), nil
	}
	return 0, nil
}

func outputReplayText(w io.Writer, r ReplayResult) {
	fmt.Fprintf(w, "Replay of Session: %s\n", r.Session)
	fmt.Fprintf(w, "  Recorded events: %d\n", r.Recorded)
	if r.Scenario != "" {
		fmt.Fprintf(w, "  Scenario:        %s (%d events)\n", r.Scenario, r.Rerun)
	}
	fmt.Fprintln(w)

	if r.Deterministic {
		fmt.Fprintln(w, "✓ Deterministic")
		return
	}
	fmt.Fprintf(w, "✗ Not deterministic: first difference at event %d\n", r.FirstMismatch)
}
