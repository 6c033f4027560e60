package attendance

import (
	"github.com/matheuscascao/attendance-registry/internal/integrations/mqtt"
)

// MQTTSink publishes attendance events to an MQTT topic.
type MQTTSink struct {
	client *mqtt.Client
	topic  string
}

// NewMQTTSink creates a sink publishing to the given topic.
func NewMQTTSink(client *mqtt.Client, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic}
}

// Publish sends the event as JSON to the configured topic.
func (s *MQTTSink) Publish(event Event) error {
	return s.client.Publish(s.topic, event)
}
