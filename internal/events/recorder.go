package events

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/faultlinehq/faultline/pkg/types"
)

// Recorder observes engine and runner events. Implementations must be safe
// for concurrent use when the runner executes logical calls in parallel.
type Recorder interface {
	Record(event types.Event)
}

type NoopRecorder struct{}

func (NoopRecorder) Record(types.Event) {}

type Multi struct {
	recorders []Recorder
}

func NewMulti(recorders ...Recorder) Multi {
	return Multi{recorders: recorders}
}

func (m Multi) Record(event types.Event) {
	for _, rec := range m.recorders {
		if rec != nil {
			rec.Record(event)
		}
	}
}

// LogRecorder mirrors events into a structured log stream.
type LogRecorder struct {
	logger zerolog.Logger
}

func NewLogRecorder(logger zerolog.Logger) LogRecorder {
	return LogRecorder{logger: logger}
}

func (r LogRecorder) Record(event types.Event) {
	entry := r.logger.Debug().
		Str("event", string(event.Type)).
		Time("ts", event.Timestamp)
	if event.Strategy != "" {
		entry = entry.Str("strategy", event.Strategy)
	}
	if event.Attempt > 0 {
		entry = entry.Int("attempt", event.Attempt)
	}
	if event.Outcome != "" {
		entry = entry.Str("outcome", string(event.Outcome))
	}
	if len(event.Details) > 0 {
		entry = entry.Fields(event.Details)
	}
	entry.Send()
}

// CaptureRecorder buffers events so tests can assert on what was emitted.
type CaptureRecorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (c *CaptureRecorder) Record(event types.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns a copy of everything recorded so far.
func (c *CaptureRecorder) Events() []types.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Event, len(c.events))
	copy(out, c.events)
	return out
}

// ByType filters recorded events by type.
func (c *CaptureRecorder) ByType(t types.EventType) []types.Event {
	var out []types.Event
	for _, ev := range c.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
