package events

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExportFunc runs the export pipeline for a fired event. It is called on the
// timer's goroutine and may block for the full export duration; the registry
// lock is never held across the call.
type ExportFunc func(ev Event)

// Registry owns the in-memory map of active events and their timers. All
// mutations go through StartOrExtend, Cancel and the internal timer
// callbacks; every access is serialized by a single mutex so concurrent
// triggers for the same identifier never race.
type Registry struct {
	mu     sync.Mutex
	events map[string]*Event
	timers map[string]*time.Timer
	seq    map[string]uint64 // timer generation per identifier, guards stale fires

	export ExportFunc
	tz     *time.Location
	now    func() time.Time
}

// NewRegistry creates a registry. export is invoked once per timer fire;
// passing nil is allowed for tests that only exercise bookkeeping.
func NewRegistry(tz *time.Location, export ExportFunc) *Registry {
	if tz == nil {
		tz = time.UTC
	}
	r := &Registry{
		events: make(map[string]*Event),
		timers: make(map[string]*time.Timer),
		seq:    make(map[string]uint64),
		export: export,
		tz:     tz,
	}
	r.now = func() time.Time { return time.Now().In(tz) }
	return r
}

// StartOrExtend creates a new event for an unseen identifier, or pushes an
// existing event's end time forward and re-arms its timer. An empty
// identifier gets a generated one. Returns a snapshot of the resulting
// event and whether it was newly created.
func (r *Registry) StartOrExtend(identifier string, pastMinutes, futureMinutes int, cameras []string) (Event, bool, error) {
	if pastMinutes < 0 || futureMinutes < 0 {
		return Event{}, false, fmt.Errorf("past_minutes and future_minutes must be non-negative (got %d, %d)", pastMinutes, futureMinutes)
	}
	if identifier == "" {
		identifier = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	ev, exists := r.events[identifier]
	if exists {
		newEnd := now.Add(time.Duration(futureMinutes) * time.Minute)
		// Extension never shortens a running event
		if newEnd.After(ev.EndTime) {
			ev.EndTime = newEnd
		}
		if cameras != nil {
			ev.Cameras = cameras
		}
		log.Printf("Event %s extended. Start: %s, End: %s", identifier, ev.StartTime, ev.EndTime)
	} else {
		ev = &Event{
			Identifier: identifier,
			StartTime:  now.Add(-time.Duration(pastMinutes) * time.Minute),
			EndTime:    now.Add(time.Duration(futureMinutes) * time.Minute),
			Cameras:    cameras,
			Status:     StatusPending,
		}
		r.events[identifier] = ev
		log.Printf("New event %s started. Start: %s, End: %s", identifier, ev.StartTime, ev.EndTime)
	}

	r.armLocked(identifier, ev.EndTime, now)
	return *ev, !exists, nil
}

// armLocked installs a fresh timer for identifier firing at end, replacing
// any existing one. Caller holds r.mu.
func (r *Registry) armLocked(identifier string, end, now time.Time) {
	if t, ok := r.timers[identifier]; ok {
		t.Stop()
	}
	r.seq[identifier]++
	gen := r.seq[identifier]

	delay := end.Sub(now)
	if delay < 0 {
		delay = 0
	}
	log.Printf("Scheduling export for event %s in %.3f seconds", identifier, delay.Seconds())
	r.timers[identifier] = time.AfterFunc(delay, func() {
		r.fire(identifier, gen)
	})
}

// fire runs when a timer elapses. A generation mismatch means the timer was
// superseded by an extension or torn down by a cancel; such fires are
// dropped without side effects.
func (r *Registry) fire(identifier string, gen uint64) {
	r.mu.Lock()
	ev, ok := r.events[identifier]
	if !ok || r.seq[identifier] != gen {
		r.mu.Unlock()
		log.Printf("Event %s was already cancelled or rescheduled, skipping export", identifier)
		return
	}
	ev.Status = StatusExporting
	snapshot := *ev
	r.mu.Unlock()

	if r.export != nil {
		r.export(snapshot)
	}

	r.complete(identifier, gen)
}

// complete removes the event after its export pipeline finished, unless the
// event was extended while the export was running; in that case the rearmed
// timer owns the remaining lifecycle and the event reverts to pending.
func (r *Registry) complete(identifier string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seq[identifier] != gen {
		if ev, ok := r.events[identifier]; ok {
			ev.Status = StatusPending
			log.Printf("Event %s was extended during export, keeping rescheduled event", identifier)
		}
		return
	}
	delete(r.events, identifier)
	delete(r.timers, identifier)
	delete(r.seq, identifier)
	log.Printf("Event %s removed after export", identifier)
}

// Cancel tears down the timer and removes the event if present. No export
// runs for a cancelled event. If the timer has already fired, the in-flight
// export finishes on its own and Cancel reports false.
func (r *Registry) Cancel(identifier string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.events[identifier]
	if !ok {
		log.Printf("No event found with identifier %s", identifier)
		return false
	}
	if ev.Status == StatusExporting {
		// Timer already fired; the pipeline removes the event when done.
		log.Printf("Event %s is already exporting, cancel ignored", identifier)
		return false
	}
	if t, found := r.timers[identifier]; found {
		t.Stop()
		delete(r.timers, identifier)
	}
	delete(r.events, identifier)
	delete(r.seq, identifier)
	log.Printf("Cancelled event %s", identifier)
	return true
}

// Get returns a snapshot of a single event.
func (r *Registry) Get(identifier string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[identifier]
	if !ok {
		return Event{}, false
	}
	return *ev, true
}

// Snapshot returns copies of all active events keyed by identifier.
func (r *Registry) Snapshot() map[string]Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Event, len(r.events))
	for id, ev := range r.events {
		out[id] = *ev
	}
	return out
}

// Now returns the registry's current time in its configured timezone.
func (r *Registry) Now() time.Time {
	return r.now()
}
