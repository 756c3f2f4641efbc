// Package config loads scopeprobe configuration from CUE files.
//
// A config file is plain CUE with top-level fields:
//
//	debounce: "25ms"
//	ttl:      12
//	feed: addr: ":7070"
//	store: path: "feed.db"
//
// The file is unified with an embedded closed schema, so unknown fields and
// out-of-range values are rejected with a position. Defaults are applied in
// Go after validation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// Defaults.
const (
	DefaultDebounce    = 10 * time.Millisecond
	DefaultTTL         = 10
	DefaultFeedAddr    = "127.0.0.1:7070"
	DefaultMetricsPath = "/metrics"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

// Config is the validated configuration.
type Config struct {
	Debounce         time.Duration
	TTL              int
	MarkerClass      string
	MarkerAttributes []string
	Session          string
	Store            StoreConfig
	Feed             FeedConfig
	Metrics          MetricsConfig
	Log              LogConfig
}

// StoreConfig configures feed recording. An empty Path disables it.
type StoreConfig struct {
	Path string `json:"path"`
}

// FeedConfig configures the websocket feed.
type FeedConfig struct {
	Addr           string   `json:"addr"`
	BufferSize     int      `json:"buffer_size"`
	HistorySize    int      `json:"history_size"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// file mirrors the CUE schema for decoding.
type file struct {
	Debounce         string       `json:"debounce"`
	TTL              int          `json:"ttl"`
	MarkerClass      string       `json:"marker_class"`
	MarkerAttributes []string     `json:"marker_attributes"`
	Session          string       `json:"session"`
	Store            *StoreConfig `json:"store"`
	Feed             *FeedConfig  `json:"feed"`
	Metrics          *metricsFile `json:"metrics"`
	Log              *LogConfig   `json:"log"`
}

type metricsFile struct {
	Enabled *bool  `json:"enabled"`
	Path    string `json:"path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Debounce: DefaultDebounce,
		TTL:      DefaultTTL,
		Feed:     FeedConfig{Addr: DefaultFeedAddr},
		Metrics:  MetricsConfig{Enabled: true, Path: DefaultMetricsPath},
		Log:      LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Load reads and validates the CUE file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse validates CUE source against the schema and applies defaults.
// filename is used for error positions.
func Parse(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}

	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var raw file
	if err := v.Decode(&raw); err != nil {
		return Config{}, formatCUEError(err)
	}
	return raw.resolve()
}

func (f file) resolve() (Config, error) {
	cfg := Default()

	if f.Debounce != "" {
		d, err := time.ParseDuration(f.Debounce)
		if err != nil {
			return Config{}, &Error{Field: "debounce", Message: err.Error()}
		}
		cfg.Debounce = d
	}
	if f.TTL != 0 {
		cfg.TTL = f.TTL
	}
	cfg.MarkerClass = f.MarkerClass
	cfg.MarkerAttributes = f.MarkerAttributes
	cfg.Session = f.Session

	if f.Store != nil {
		cfg.Store = *f.Store
	}
	if f.Feed != nil {
		addr := cfg.Feed.Addr
		cfg.Feed = *f.Feed
		if cfg.Feed.Addr == "" {
			cfg.Feed.Addr = addr
		}
	}
	if f.Metrics != nil {
		if f.Metrics.Enabled != nil {
			cfg.Metrics.Enabled = *f.Metrics.Enabled
		}
		if f.Metrics.Path != "" {
			cfg.Metrics.Path = f.Metrics.Path
		}
	}
	if f.Log != nil {
		if f.Log.Level != "" {
			cfg.Log.Level = f.Log.Level
		}
		if f.Log.Format != "" {
			cfg.Log.Format = f.Log.Format
		}
	}
	return cfg, nil
}

// Error is a configuration error with an optional source position.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	path := first.Path()
	field := "cue"
	if len(path) > 0 {
		field = path[len(path)-1]
	}
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &Error{
			Field:   field,
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &Error{Field: field, Message: first.Error()}
}
