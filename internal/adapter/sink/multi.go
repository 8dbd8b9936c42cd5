package sink

import (
	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/core/port"
)

// MultiSink fans an event out to every configured sink in order.
type MultiSink struct {
	sinks []port.EventSink
}

func NewMultiSink(sinks ...port.EventSink) *MultiSink {
	var filtered []port.EventSink
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Notify(event domain.EnergyEvent) {
	for _, s := range m.sinks {
		s.Notify(event)
	}
}

var _ port.EventSink = (*MultiSink)(nil)
