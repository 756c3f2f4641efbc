package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scopeprobe/internal/hint"
)

func drain(ch <-chan Envelope) []Envelope {
	var out []Envelope
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestHub_Broadcasts(t *testing.T) {
	hub := NewHub(HubOptions{HistorySize: -1})
	a, cancelA := hub.Subscribe()
	defer cancelA()
	b, cancelB := hub.Subscribe()
	defer cancelB()

	hub.Emit(hint.ScopeDestroy{ID: 3})

	want := []Envelope{{Type: hint.TypeScopeDestroy, Payload: []byte(`{"id":3}`)}}
	assert.Equal(t, want, drain(a))
	assert.Equal(t, want, drain(b))
	assert.Equal(t, int64(1), hub.Published())
}

func TestHub_HistoryForLateSubscribers(t *testing.T) {
	hub := NewHub(HubOptions{HistorySize: 2})
	hub.Emit(hint.ScopeNew{Child: 1})
	hub.Emit(hint.ScopeDestroy{ID: 2})
	hub.Emit(hint.ScopeDestroy{ID: 3})

	ch, cancel := hub.Subscribe()
	defer cancel()

	got := drain(ch)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"id":2}`, string(got[0].Payload))
	assert.JSONEq(t, `{"id":3}`, string(got[1].Payload))
}

func TestHub_DropsOnFullBuffer(t *testing.T) {
	hub := NewHub(HubOptions{BufferSize: 1, HistorySize: -1})
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Emit(hint.ScopeDestroy{ID: 1})
	hub.Emit(hint.ScopeDestroy{ID: 2})

	assert.Len(t, drain(ch), 1)
	assert.Equal(t, int64(1), hub.Dropped())
	assert.Equal(t, int64(2), hub.Published())
}

func TestHub_CancelAndClose(t *testing.T) {
	hub := NewHub(HubOptions{})
	ch, cancel := hub.Subscribe()
	assert.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers())
	_, ok := <-ch
	assert.False(t, ok)

	other, _ := hub.Subscribe()
	hub.Close()
	hub.Close()
	_, ok = <-other
	assert.False(t, ok)

	late, _ := hub.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed hub yields a closed channel")

	hub.Emit(hint.ScopeDestroy{ID: 1})
	assert.Equal(t, int64(0), hub.Published())
}

func TestEncode_NoHTMLEscaping(t *testing.T) {
	env, err := Encode(hint.ScopeLink{ID: 2, Descriptor: `ng-repeat="x in xs | filter:a<b"`})
	require.NoError(t, err)
	assert.Equal(t, hint.TypeScopeLink, env.Type)
	assert.Equal(t, `{"id":2,"descriptor":"ng-repeat=\"x in xs | filter:a<b\""}`, string(env.Payload))
}
