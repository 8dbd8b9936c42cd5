package port

import "github.com/berfenger/engymgr/internal/core/domain"

// EventSink delivers energy events to subscribers. Notify must not block
// on delivery and must not call back into the caller synchronously while
// holding its own locks.
type EventSink interface {
	Notify(event domain.EnergyEvent)
}

type EventSinkFunc func(event domain.EnergyEvent)

func (f EventSinkFunc) Notify(event domain.EnergyEvent) {
	f(event)
}

type nopSink struct{}

func (nopSink) Notify(domain.EnergyEvent) {}

func NopSink() EventSink {
	return nopSink{}
}
