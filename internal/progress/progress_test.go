package progress

import (
	"testing"
	"time"
)

func TestRecorderAccumulatesInArrivalOrder(t *testing.T) {
	r := NewRecorder(nil)
	r.PhaseStart(SideReference, PhaseTables)
	r.PhaseComplete(SideReference, PhaseTables, 3, 10*time.Millisecond)
	r.Warning(SideTarget, PhaseColumns, "table with zero columns")

	events := r.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != "start" || events[1].Kind != "complete" || events[2].Kind != "warning" {
		t.Fatalf("events out of order: %+v", events)
	}
}

func TestRecorderWarningsFilter(t *testing.T) {
	r := NewRecorder(nil)
	r.PhaseStart(SideReference, PhaseTables)
	r.Warning(SideReference, PhaseTables, "w1")
	r.Warning(SideTarget, PhaseColumns, "w2")

	warnings := r.Warnings()
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(warnings))
	}
}

func TestRecorderForwardsToHook(t *testing.T) {
	var forwarded []Event
	r := NewRecorder(func(e Event) { forwarded = append(forwarded, e) })
	r.PhaseStart(SideReference, PhaseTables)
	if len(forwarded) != 1 {
		t.Fatalf("expected hook to receive 1 event, got %d", len(forwarded))
	}
}

func TestNopSinkDiscardsEverything(t *testing.T) {
	var s Sink = NopSink{}
	s.PhaseStart(SideReference, PhaseTables)
	s.PhaseComplete(SideReference, PhaseTables, 1, time.Second)
	s.Warning(SideReference, PhaseTables, "ignored")
}
