package events

import (
	"fmt"
	"testing"
)

type stubEvent string

func (s stubEvent) EventType() string { return string(s) }

func TestLogRetainsEmissionOrder(t *testing.T) {
	log := NewLog()
	log.Emit(stubEvent("a"))
	log.Emit(stubEvent("b"))
	log.Emit(nil)

	got := log.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventType() != "a" || got[1].EventType() != "b" {
		t.Fatalf("events out of order: %v", got)
	}
}

func TestLogDropsOldestAtCapacity(t *testing.T) {
	log := NewLogWithCapacity(3)
	for i := 0; i < 5; i++ {
		log.Emit(stubEvent(fmt.Sprintf("evt-%d", i)))
	}

	if log.Len() != 3 {
		t.Fatalf("capacity not enforced: %d events retained", log.Len())
	}
	got := log.Events()
	for i, want := range []string{"evt-2", "evt-3", "evt-4"} {
		if got[i].EventType() != want {
			t.Fatalf("event %d: want %s got %s", i, want, got[i].EventType())
		}
	}
}

func TestLogZeroCapacityFallsBackToDefault(t *testing.T) {
	log := NewLogWithCapacity(0)
	log.Emit(stubEvent("a"))
	if log.Len() != 1 {
		t.Fatalf("default-capacity log dropped an event")
	}
}
