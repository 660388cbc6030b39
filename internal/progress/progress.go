// Package progress carries extraction phase-start/phase-complete/warning
// events from the extractor to whatever is watching a run: the CLI's own
// stderr or the optional live status server. Events are kept in memory
// only; nothing here writes them to a file. Grounded on the teacher's
// internal/state (serialisable run state) shape.
package progress

import (
	"fmt"
	"sync"
	"time"
)

// Phase identifies one of the four strictly-ordered extraction phases.
type Phase string

const (
	PhaseTables      Phase = "tables"
	PhaseColumns     Phase = "columns"
	PhaseConstraints Phase = "constraints"
	PhaseIndexes     Phase = "indexes"
)

// Side identifies which of the two parallel extractions an event belongs to.
type Side string

const (
	SideReference Side = "reference"
	SideTarget    Side = "target"
)

// Event is one phase-start, phase-complete, or warning notification.
type Event struct {
	Side      Side      `json:"side"`
	Phase     Phase     `json:"phase"`
	Kind      string    `json:"kind"` // "start" | "complete" | "warning"
	ItemCount int       `json:"item_count,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Sink receives extraction progress events. Implementations must be safe
// for concurrent use, since the reference and target extractions report to
// the same sink from two goroutines (spec §5).
type Sink interface {
	PhaseStart(side Side, phase Phase)
	PhaseComplete(side Side, phase Phase, itemCount int, elapsed time.Duration)
	Warning(side Side, phase Phase, message string)
}

// NopSink discards every event; the zero value is ready to use.
type NopSink struct{}

func (NopSink) PhaseStart(Side, Phase)                                  {}
func (NopSink) PhaseComplete(Side, Phase, int, time.Duration)            {}
func (NopSink) Warning(Side, Phase, string)                              {}

var _ Sink = NopSink{}

// Recorder is a Sink that accumulates every event it receives, in arrival
// order, for later rendering or persistence. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	onEach func(Event) // optional hook, e.g. to forward to a websocket hub
}

// NewRecorder creates a Recorder, optionally forwarding each event to onEach
// as it arrives (pass nil to only accumulate).
func NewRecorder(onEach func(Event)) *Recorder {
	return &Recorder{onEach: onEach}
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	if r.onEach != nil {
		r.onEach(e)
	}
}

func (r *Recorder) PhaseStart(side Side, phase Phase) {
	r.record(Event{Side: side, Phase: phase, Kind: "start", At: time.Now()})
}

func (r *Recorder) PhaseComplete(side Side, phase Phase, itemCount int, elapsed time.Duration) {
	r.record(Event{Side: side, Phase: phase, Kind: "complete", ItemCount: itemCount, Elapsed: elapsed, At: time.Now()})
}

func (r *Recorder) Warning(side Side, phase Phase, message string) {
	r.record(Event{Side: side, Phase: phase, Kind: "warning", Message: message, At: time.Now()})
}

// Events returns a snapshot of every event recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Warnings returns only the warning events, in arrival order. The report's
// validation-warning appendix is built from internal/validate, not from
// these events.
func (r *Recorder) Warnings() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == "warning" {
			out = append(out, e)
		}
	}
	return out
}

var _ Sink = (*Recorder)(nil)

// String renders an event as a single human-readable line, used by the CLI's
// plain-text progress output.
func (e Event) String() string {
	switch e.Kind {
	case "start":
		return fmt.Sprintf("[%s] %s: starting", e.Side, e.Phase)
	case "complete":
		return fmt.Sprintf("[%s] %s: done (%d items, %s)", e.Side, e.Phase, e.ItemCount, e.Elapsed.Round(time.Millisecond))
	case "warning":
		return fmt.Sprintf("[%s] %s: warning: %s", e.Side, e.Phase, e.Message)
	default:
		return fmt.Sprintf("[%s] %s: %s", e.Side, e.Phase, e.Kind)
	}
}
