package sink

import (
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/core/port"
)

// EventStreamSink publishes energy events on the actor system event stream,
// where the MQTT actor picks them up.
type EventStreamSink struct {
	stream *eventstream.EventStream
}

func NewEventStreamSink(stream *eventstream.EventStream) *EventStreamSink {
	return &EventStreamSink{stream: stream}
}

func (s *EventStreamSink) Notify(event domain.EnergyEvent) {
	s.stream.Publish(event)
}

var _ port.EventSink = (*EventStreamSink)(nil)
