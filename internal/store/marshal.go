package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/scopeprobe/internal/hint"
)

// marshalPayload converts an event to JSON TEXT for storage.
// HTML escaping is disabled so descriptors like ng-repeat="x in xs" and
// snapshot text are stored as emitted.
func marshalPayload(ev hint.Event) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", ev.Type(), err)
	}
	// Encoder adds a trailing newline
	return string(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

// unmarshalEvent parses a stored payload back into the event type named by
// eventType.
func unmarshalEvent(eventType string, payload []byte) (hint.Event, error) {
	switch eventType {
	case hint.TypeScopeNew:
		return decodeAs[hint.ScopeNew](eventType, payload)
	case hint.TypeScopeLink:
		return decodeAs[hint.ScopeLink](eventType, payload)
	case hint.TypeScopeDigest:
		return decodeAs[hint.ScopeDigest](eventType, payload)
	case hint.TypeScopeDestroy:
		return decodeAs[hint.ScopeDestroy](eventType, payload)
	case hint.TypeModelChange:
		return decodeAs[hint.ModelChange](eventType, payload)
	}
	return nil, fmt.Errorf("unknown event type %q", eventType)
}

func decodeAs[T hint.Event](eventType string, payload []byte) (hint.Event, error) {
	var ev T
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", eventType, err)
	}
	return ev, nil
}
