package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/scopeprobe/internal/config"
	"github.com/roach88/scopeprobe/internal/feed"
	"github.com/roach88/scopeprobe/internal/harness"
	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/metrics"
	"github.com/roach88/scopeprobe/internal/store"
)

const (
	defaultTick     = 10 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Database string
	Session  string
	Label    string
	Tick     time.Duration

	// OnListen is called with the bound address once the server accepts
	// connections (for testing).
	OnListen func(addr string)

	// Sessions allows overriding the session generator (for testing).
	Sessions hint.SessionGenerator
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve [scenario]",
		Short: "Serve the event feed over a websocket",
		Long: `Serve the event feed of an instrumented scope tree over a websocket.

With a scenario, the scenario is run and its tree stays live: panels on
/feed receive the run's events, and may observe, unobserve and assign model
paths or inspect scopes. Simulated time keeps moving in --tick steps so
debounced re-checks fire.

Without a scenario, --db and --session serve a recorded session read-only.

Prometheus metrics are served on the configured metrics path.

Examples:
  scopeprobe serve ./testdata/scenarios/cart_totals.yaml
  scopeprobe serve --addr :7070 --db ./feed.db ./cart_totals.yaml
  scopeprobe serve --db ./feed.db --session 0190d6a2-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runServe(opts, path, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Session, "session", "", "recorded session to serve read-only")
	cmd.Flags().StringVar(&opts.Label, "label", "", "label stored with the recorded session")
	cmd.Flags().DurationVar(&opts.Tick, "tick", defaultTick, "simulated time step of a live tree")

	return cmd
}

func runServe(opts *ServeOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cfg, cmd.ErrOrStderr())

	if path == "" && (opts.Database == "" || opts.Session == "") {
		return NewExitError(ExitCommandError, "serve needs a scenario, or --db and --session")
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	hub := feed.NewHub(feed.HubOptions{
		BufferSize:  cfg.Feed.BufferSize,
		HistorySize: cfg.Feed.HistorySize,
		Logger:      logger,
	})
	defer hub.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	collector.TrackFeed(hub)
	sink := hint.Fanout(hub, collector)

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}
	var st *store.Store
	if dbPath != "" {
		st, err = store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer closeStore(st, logger)
	}

	handler := &feed.Handler{Hub: hub, Logger: logger, AllowedOrigins: cfg.Feed.AllowedOrigins}
	var live *liveTree

	if path == "" {
		n, err := st.Replay(ctx, opts.Session, sink)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to replay session", err)
		}
		logger.Info("serving recorded session", "session", opts.Session, "events", n)
	} else {
		live, err = startScenario(ctx, opts, path, cfg, st, sink, logger)
		if err != nil {
			return err
		}
		handler.Tree = live.result.Tree
	}

	mux := http.NewServeMux()
	mux.Handle("/feed", handler)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Feed.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	logger.Info("feed listening", "addr", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "Feed listening on ws://%s/feed\n", ln.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.OnListen != nil {
		opts.OnListen(ln.Addr().String())
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = WrapExitError(ExitFailure, "feed server error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("feed shutdown failed", "error", err)
	}
	if live != nil {
		live.stop()
	}

	logger.Info("feed stopped")
	return runErr
}

// liveTree keeps a scenario's tree running after its steps.
type liveTree struct {
	result *harness.Result
	cancel context.CancelFunc
	done   chan struct{}
}

// startScenario runs the scenario, then starts the tree's loop and a pump
// that moves the run's mock clock in real time.
func startScenario(ctx context.Context, opts *ServeOptions, path string, cfg config.Config,
	st *store.Store, sink hint.Sink, logger *slog.Logger) (*liveTree, error) {

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	scenario.Session = sessionFor(scenario, cfg, opts.Sessions)

	runOpts := append(configRunOptions(cfg, logger), harness.WithSink(sink))
	if st != nil {
		rec, err := store.NewRecorder(ctx, st, scenario.Session, labelFor(opts.Label, scenario))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to start recording", err)
		}
		rec.WithLogger(logger)
		runOpts = append(runOpts, harness.WithSink(rec))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to run scenario", err)
	}
	if !result.Pass {
		for _, e := range result.Errors {
			logger.Warn("scenario check failed", "error", e)
		}
	}
	logger.Info("scenario ready", "scenario", scenario.Name, "session", result.Session, "events", len(result.Trace))

	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}

	loopCtx, cancel := context.WithCancel(ctx)
	live := &liveTree{result: result, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(live.done)
		if err := result.Root.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scope loop error", "error", err)
		}
	}()
	go pumpClock(loopCtx, result.Clock, tick)

	return live, nil
}

func (l *liveTree) stop() {
	l.result.Root.Stop()
	l.cancel()
	<-l.done
}

// pumpClock advances m by tick on every real tick until ctx is done.
func pumpClock(ctx context.Context, m *clock.Mock, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Add(tick)
		}
	}
}
