package signaling

import (
	"fmt"
	"log"

	"protevent/events"
)

// Dispatcher maps motion-sensor codes to cameras and starts or extends the
// matching event. Each code gets its own event identifier, so repeated
// pulses from one sensor extend a single recording window.
type Dispatcher struct {
	registry      *events.Registry
	cameras       map[string]string // code -> camera name
	pastMinutes   int
	futureMinutes int
}

// NewDispatcher builds a dispatcher over the configured code→camera map.
func NewDispatcher(registry *events.Registry, cameras map[string]string, pastMinutes, futureMinutes int) *Dispatcher {
	return &Dispatcher{
		registry:      registry,
		cameras:       cameras,
		pastMinutes:   pastMinutes,
		futureMinutes: futureMinutes,
	}
}

// HandleSignal starts or extends the event for a sensor code.
func (d *Dispatcher) HandleSignal(code string) error {
	camera, ok := d.cameras[code]
	if !ok {
		return fmt.Errorf("unknown sensor code %q", code)
	}

	identifier := "motion-" + code
	ev, created, err := d.registry.StartOrExtend(identifier, d.pastMinutes, d.futureMinutes, []string{camera})
	if err != nil {
		return err
	}
	if created {
		log.Printf("Sensor %s started event %s for camera %s", code, ev.Identifier, camera)
	} else {
		log.Printf("Sensor %s extended event %s until %s", code, ev.Identifier, ev.EndTime)
	}
	return nil
}
