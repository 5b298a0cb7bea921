package events

import (
	"log"
	"sort"
	"strings"
	"time"
)

// Reporter periodically logs a line per active event with its remaining
// time. It is a read-only consumer of the registry and runs independently
// of the per-event timers.
type Reporter struct {
	registry *Registry
	interval time.Duration
	stop     chan struct{}
}

// NewReporter creates a reporter logging every interval.
func NewReporter(registry *Registry, interval time.Duration) *Reporter {
	return &Reporter{
		registry: registry,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the reporting loop in a goroutine.
func (r *Reporter) Start() {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.logActiveEvents()
			case <-r.stop:
				return
			}
		}
	}()
	log.Printf("Status reporter started with interval %s", r.interval)
}

// Stop terminates the reporting loop.
func (r *Reporter) Stop() {
	close(r.stop)
}

func (r *Reporter) logActiveEvents() {
	snapshot := r.registry.Snapshot()
	if len(snapshot) == 0 {
		return
	}
	now := r.registry.Now()
	log.Printf("Logging %d active event(s):", len(snapshot))
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		log.Print(FormatEventLine(snapshot[id], now))
	}
}

// FormatEventLine renders one report line for an event.
func FormatEventLine(ev Event, now time.Time) string {
	cameras := "all"
	if !ev.AllCameras() {
		cameras = strings.Join(ev.Cameras, ",")
	}
	return "Event " + ev.Identifier +
		" | Start: " + ev.StartTime.Format(timeLayout) +
		", End: " + ev.EndTime.Format(timeLayout) +
		", Remaining: " + ev.Remaining(now).Truncate(10*time.Millisecond).String() +
		", Cameras: " + cameras
}
