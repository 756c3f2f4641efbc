package feed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/scopeprobe/internal/hint"
	"github.com/roach88/scopeprobe/internal/scope"
)

// TypeError tags envelopes that report a failed command to its sender.
const TypeError = "error"

// Envelope is the wire form of one feed message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps ev in an envelope. HTML escaping is disabled.
func Encode(ev hint.Event) (Envelope, error) {
	payload, err := marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	return Envelope{Type: ev.Type(), Payload: payload}, nil
}

// CommandError is the payload of an error envelope.
type CommandError struct {
	Op      string   `json:"op"`
	ID      scope.ID `json:"id"`
	Message string   `json:"message"`
}

func errorEnvelope(cmd Command, err error) Envelope {
	payload, _ := marshal(CommandError{Op: cmd.Op, ID: cmd.ID, Message: err.Error()})
	return Envelope{Type: TypeError, Payload: payload}
}

func marshal(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
