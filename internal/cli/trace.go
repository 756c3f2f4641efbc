package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/scope"
	"github.com/roach88/scopeprobe/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Types    []string // optional - filter to event types
	Scope    int64    // optional - filter to one scope
}

// TraceResult holds the trace output for one session.
type TraceResult struct {
	Session string         `json:"session"`
	Events  []store.Record `json:"events"`
	Stats   TraceStats     `json:"stats"`
}

// TraceStats counts a session's events by type.
type TraceStats struct {
	TotalEvents  int `json:"total_events"`
	Scopes       int `json:"scopes"`
	Digests      int `json:"digests"`
	ModelChanges int `json:"model_changes"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query recorded sessions",
		Long: `Query the events recorded for a session.

Without --session, lists the recorded sessions. With --session, prints the
session's events in order, optionally filtered to event types or one scope.

Examples:
  scopeprobe trace --db ./feed.db
  scopeprobe trace --db ./feed.db --session cart-session
  scopeprobe trace --db ./feed.db --session cart-session --type scope:digest
  scopeprobe trace --db ./feed.db --session cart-session --scope 2 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to trace")
	cmd.Flags().StringSliceVar(&opts.Types, "type", nil, "filter to event types (repeatable)")
	cmd.Flags().Int64Var(&opts.Scope, "scope", 0, "filter to one scope id")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Session == "" {
		return listSessions(ctx, st, opts, cmd)
	}

	records, err := readTrace(ctx, st, opts)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	result := TraceResult{
		Session: opts.Session,
		Events:  records,
		Stats:   traceStats(records),
	}

	if opts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// readTrace applies the scope and type filters. Both filters together keep
// the scope's events of the listed types.
func readTrace(ctx context.Context, st *store.Store, opts *TraceOptions) ([]store.Record, error) {
	var (
		records []store.Record
		err     error
	)
	switch {
	case opts.Scope != 0:
		records, err = st.ReadScope(ctx, opts.Session, scope.ID(opts.Scope))
	case len(opts.Types) > 0:
		return st.ReadSessionTypes(ctx, opts.Session, opts.Types...)
	default:
		return st.ReadSession(ctx, opts.Session)
	}
	if err != nil || len(opts.Types) == 0 {
		return records, err
	}

	keep := make(map[string]bool, len(opts.Types))
	for _, t := range opts.Types {
		keep[t] = true
	}
	filtered := records[:0]
	for _, r := range records {
		if keep[r.Type] {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func traceStats(records []store.Record) TraceStats {
	stats := TraceStats{TotalEvents: len(records)}
	for _, r := range records {
		switch r.Type {
		case hint.TypeScopeNew:
			stats.Scopes++
		case hint.TypeScopeDigest:
			stats.Digests++
		case hint.TypeModelChange:
			stats.ModelChanges++
		}
	}
	return stats
}

func listSessions(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	sessions, err := st.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if opts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), sessions)
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	fmt.Fprintln(w, "=== Sessions ===")
	for _, s := range sessions {
		label := s.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "  %s  %s  (%d events)\n", s.ID, label, s.Events)
	}
	return nil
}

// outputJSON writes data wrapped in an ok response.
func outputJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(CLIResponse{Status: "ok", Data: data})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Session: %s\n", result.Session)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Events) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, r := range result.Events {
		if verbose {
			fmt.Fprintf(w, "  [%d] %s %s\n", r.Seq, r.Type, r.Payload)
			continue
		}
		fmt.Fprintf(w, "  [%d] %s scope=%d\n", r.Seq, r.Type, r.ScopeID)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events:  %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Scopes:        %d\n", result.Stats.Scopes)
	fmt.Fprintf(w, "  Digests:       %d\n", result.Stats.Digests)
	fmt.Fprintf(w, "  Model Changes: %d\n", result.Stats.ModelChanges)

	return nil
}
