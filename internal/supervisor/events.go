package supervisor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/mqtt"
)

// Publisher is the part of the MQTT client used to fan out events.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Event is the JSON body published for each outcome.
type Event struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Outcome
}

// MQTTEvents publishes outcomes on <prefix>/process/<id>/event.
type MQTTEvents struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
	now    func() time.Time
}

// NewMQTTEvents returns an EventPublisher backed by pub.
func NewMQTTEvents(pub Publisher, topics mqtt.Topics, qos byte) *MQTTEvents {
	return &MQTTEvents{pub: pub, topics: topics, qos: qos, now: time.Now}
}

// PublishOutcome implements EventPublisher. Outcomes that name no record
// (an unmatched selector) are published under id -1.
func (e *MQTTEvents) PublishOutcome(o Outcome) error {
	ev := Event{
		EventID:   uuid.NewString(),
		Timestamp: e.now().UTC(),
		Outcome:   o,
	}
	ev.Record = nil

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	return e.pub.Publish(e.topics.ProcessEvent(o.ID), body, e.qos, false)
}

// Publishers fans an outcome out to several publishers. Every publisher sees
// the outcome; the first error is returned.
type Publishers []EventPublisher

// PublishOutcome implements EventPublisher.
func (ps Publishers) PublishOutcome(o Outcome) error {
	var first error
	for _, p := range ps {
		if err := p.PublishOutcome(o); err != nil && first == nil {
			first = err
		}
	}
	return first
}
