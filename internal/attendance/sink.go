// Package attendance defines the attendance event and the sinks that
// accepted recognitions are delivered to. The recognition loop treats
// delivery as fire-and-forget: sink errors are logged, never fatal.
package attendance

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
)

// Event is one accepted recognition.
type Event struct {
	ID           string          `json:"id"`            // UUID assigned at acceptance time
	IdentityCode string          `json:"identity_code"` // filename stem of the matched reference
	DeviceID     string          `json:"device_id"`     // capture device identifier
	CapturedAt   time.Time       `json:"captured_at"`   // timestamp of the matched frame
	Confidence   float64         `json:"confidence"`    // similarity in percent
	Provider     string          `json:"provider"`      // comparator that produced the match
	Raw          json.RawMessage `json:"-"`             // raw comparator payload, if available
}

// Sink accepts attendance events.
type Sink interface {
	Publish(event Event) error
}

// MultiSink fans an event out to several sinks. A failing sink is
// logged and does not prevent delivery to the others.
type MultiSink []Sink

// Publish delivers the event to every sink.
func (m MultiSink) Publish(event Event) error {
	for _, sink := range m {
		if err := sink.Publish(event); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"event_id": event.ID,
				"identity": event.IdentityCode,
			}).Error("Attendance sink delivery failed")
		}
	}
	return nil
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event Event) error

// Publish calls the wrapped function.
func (f SinkFunc) Publish(event Event) error {
	return f(event)
}
