package hint

// Sink receives published events. Emit is called synchronously on the tree's
// goroutine; implementations must not block for long and cannot fail the
// caller.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev Event) { f(ev) }

// Fanout delivers every event to each sink in order. Nil sinks are skipped.
func Fanout(sinks ...Sink) Sink {
	live := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return fanout(live)
}

type fanout []Sink

func (f fanout) Emit(ev Event) {
	for _, s := range f {
		s.Emit(ev)
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})
