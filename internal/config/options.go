package config

import (
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/scope"
)

// ScopeOptions returns the host options the config selects.
func (c Config) ScopeOptions() []scope.Option {
	return []scope.Option{scope.WithTTL(c.TTL)}
}

// HintOptions returns the instrumentation options the config selects.
func (c Config) HintOptions() []hint.Option {
	opts := []hint.Option{hint.WithDebounce(c.Debounce)}
	if c.MarkerClass != "" {
		opts = append(opts, hint.WithMarkerClass(c.MarkerClass))
	}
	if len(c.MarkerAttributes) > 0 {
		opts = append(opts, hint.WithMarkerAttributes(c.MarkerAttributes...))
	}
	if c.Session != "" {
		opts = append(opts, hint.WithSession(c.Session))
	}
	return opts
}

// Level returns the slog level named by Log.Level.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Logger builds a logger writing to w in the configured format.
func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
