package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioYAML = `name: inline
description: "one child scope with a watched expression"
session: inline-session
steps:
  - op: set
    path: total
    value: 3
  - op: new
  - op: watch
    scope: 2
    expr: total
    cost: 2ms
  - op: digest
  - op: flush
assertions:
  - type: event_count
    event: scope:new
    count: 2
`

const failingScenarioYAML = `name: failing
description: "expects an event that never happens"
steps:
  - op: new
assertions:
  - type: event_count
    event: scope:destroy
    count: 1
`

// writeFile writes content to name under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "scopeprobe", cmd.Use)
	assert.Contains(t, cmd.Long, "digest timings")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "serve", "test", "trace", "replay", "validate"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"run", []string{"db", "label"}},
		{"serve", []string{"addr", "db", "session", "label", "tick"}},
		{"test", []string{"update", "filter", "golden"}},
		{"trace", []string{"db", "session", "type", "scope"}},
		{"replay", []string{"db", "session"}},
	}

	cmd := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "flag --%s", name)
			}
		})
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inline.yaml", scenarioYAML)

	_, err := execute(t, "--format", "invalid", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadConfig(t *testing.T) {
	opts := &RootOptions{}
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.TTL)

	dir := t.TempDir()
	opts.Config = writeFile(t, dir, "scopeprobe.cue", "ttl: 4\n")
	cfg, err = opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.TTL)

	opts.Config = filepath.Join(dir, "missing.cue")
	_, err = opts.loadConfig()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
