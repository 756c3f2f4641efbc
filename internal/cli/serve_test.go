package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeprobe/internal/feed"
	"github.com/roach88/scopeprobe/internal/hint"
)

// startServe runs the serve command until the test ends and returns the
// bound address.
func startServe(t *testing.T, path string, flags ServeOptions) string {
	t.Helper()

	opts := flags
	opts.RootOptions = &RootOptions{Format: "text"}
	opts.Addr = "127.0.0.1:0"
	opts.Tick = 2 * time.Millisecond
	addrCh := make(chan string, 1)
	opts.OnListen = func(addr string) { addrCh <- addr }

	ctx, cancel := context.WithCancel(context.Background())
	cmd := NewServeCommand(opts.RootOptions)
	cmd.SetContext(ctx)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	done := make(chan error, 1)
	go func() { done <- runServe(&opts, path, cmd) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("serve did not stop")
		}
	})

	select {
	case addr := <-addrCh:
		return addr
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not start listening")
	}
	return ""
}

func dialFeed(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/feed", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads envelopes until match accepts one.
func readEnvelope(t *testing.T, conn *websocket.Conn, match func(feed.Envelope) bool) feed.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env feed.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if match(env) {
			return env
		}
	}
}

func ofType(typ string) func(feed.Envelope) bool {
	return func(env feed.Envelope) bool { return env.Type == typ }
}

func TestServeLiveScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inline.yaml", scenarioYAML)
	addr := startServe(t, path, ServeOptions{})

	conn := dialFeed(t, addr)

	// History carries the scenario's events.
	link := readEnvelope(t, conn, ofType(hint.TypeScopeLink))
	assert.JSONEq(t, `{"id":2,"descriptor":"scope.id=2"}`, string(link.Payload))

	require.NoError(t, conn.WriteJSON(map[string]any{"op": "observe", "id": 1, "path": "total"}))
	initial := readEnvelope(t, conn, ofType(hint.TypeModelChange))
	assert.JSONEq(t, `{"id":1,"path":"total","value":3}`, string(initial.Payload))

	require.NoError(t, conn.WriteJSON(map[string]any{"op": "assign", "id": 1, "path": "total", "value": 5}))
	changed := readEnvelope(t, conn, func(env feed.Envelope) bool {
		return env.Type == hint.TypeModelChange && bytes.Contains(env.Payload, []byte(`"oldValue"`))
	})
	assert.JSONEq(t, `{"id":1,"path":"total","oldValue":3,"value":5}`, string(changed.Payload))

	require.NoError(t, conn.WriteJSON(map[string]any{"op": "teleport", "id": 1}))
	errEnv := readEnvelope(t, conn, ofType(feed.TypeError))
	assert.Contains(t, string(errEnv.Payload), "unknown op")
}

func TestServeMetrics(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inline.yaml", scenarioYAML)
	addr := startServe(t, path, ServeOptions{})

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "scopeprobe_feed_published_total 4")
}

func TestServeRecordedSessionReadOnly(t *testing.T) {
	dbPath := recordScenario(t)
	addr := startServe(t, "", ServeOptions{Database: dbPath, Session: "inline-session"})

	conn := dialFeed(t, addr)
	readEnvelope(t, conn, ofType(hint.TypeScopeDigest))

	require.NoError(t, conn.WriteJSON(map[string]any{"op": "observe", "id": 1, "path": "total"}))
	errEnv := readEnvelope(t, conn, ofType(feed.TypeError))

	var cmdErr feed.CommandError
	require.NoError(t, json.Unmarshal(errEnv.Payload, &cmdErr))
	assert.Equal(t, "observe", cmdErr.Op)
	assert.Contains(t, cmdErr.Message, "read-only")
}

func TestServeNeedsScenarioOrSession(t *testing.T) {
	_, err := execute(t, "serve", "--db", filepath.Join(t.TempDir(), "feed.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "serve needs a scenario")
}
