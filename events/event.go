package events

import (
	"time"
)

// Status represents the lifecycle state of an event
type Status string

const (
	StatusPending   Status = "pending"   // waiting for its timer to fire
	StatusExporting Status = "exporting" // export pipeline is running
)

// Event is a tracked time window during which video should be exported for
// a camera set. Events live only in memory; they are created by the first
// trigger for an identifier, pushed forward by subsequent triggers, and
// removed after cancellation or after their export pipeline finishes.
type Event struct {
	Identifier string    `json:"identifier"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Cameras    []string  `json:"cameras"` // empty means all cameras
	Status     Status    `json:"status"`
}

// Remaining returns the time left until the event's scheduled end, clamped
// to zero for events whose end has passed but whose timer has not fired yet.
func (e Event) Remaining(now time.Time) time.Duration {
	d := e.EndTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// AllCameras reports whether the event targets every camera. A nil or empty
// set, or a set of only blank names, is the "all cameras" sentinel.
func (e Event) AllCameras() bool {
	for _, c := range e.Cameras {
		if c != "" {
			return false
		}
	}
	return true
}

// StatusView is the JSON shape returned by the status endpoints and polled
// by the dashboard.
type StatusView struct {
	StartTime            string   `json:"start_time"`
	EndTime              string   `json:"end_time"`
	RemainingTimeSeconds float64  `json:"remaining_time_seconds"`
	Cameras              []string `json:"cameras"`
	Status               Status   `json:"status"`
}

const timeLayout = "2006-01-02 15:04:05-0700"

// View renders the event for API consumers.
func (e Event) View(now time.Time) StatusView {
	return StatusView{
		StartTime:            e.StartTime.Format(timeLayout),
		EndTime:              e.EndTime.Format(timeLayout),
		RemainingTimeSeconds: e.Remaining(now).Seconds(),
		Cameras:              e.Cameras,
		Status:               e.Status,
	}
}
