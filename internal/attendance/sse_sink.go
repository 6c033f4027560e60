package attendance

import (
	"encoding/json"
	"fmt"

	"github.com/matheuscascao/attendance-registry/internal/server/sse"
)

// SSESink broadcasts attendance events to connected SSE clients.
type SSESink struct {
	hub *sse.Hub
}

// NewSSESink creates a sink broadcasting through the given hub.
func NewSSESink(hub *sse.Hub) *SSESink {
	return &SSESink{hub: hub}
}

// Publish broadcasts the event as JSON.
func (s *SSESink) Publish(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for SSE: %w", err)
	}
	s.hub.Broadcast(data)
	return nil
}
