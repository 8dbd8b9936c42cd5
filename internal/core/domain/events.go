package domain

import "time"

const (
	EVENT_OVER_LIMIT                = "over_limit"
	EVENT_AVAILABLE_CURRENT_CHANGED = "available_current_changed"
	EVENT_METER_UPDATED             = "meter_updated"
	EVENT_STATE_SNAPSHOT            = "state_snapshot"
)

// EnergyEvent is any notification emitted by the energy manager.
type EnergyEvent interface {
	EventName() string
}

// OverLimit reports an observed quantity above its threshold. Limit is in
// configuration units (A, V or W), Value is the offending reading.
type OverLimit struct {
	Category MeterCategory `json:"category"`
	Limit    int32         `json:"limit"`
	Value    float64       `json:"value"`
}

func (OverLimit) EventName() string { return EVENT_OVER_LIMIT }

// AvailableCurrentChanged carries the allocatable load current in whole amps.
type AvailableCurrentChanged struct {
	Amps int32 `json:"amps"`
}

func (AvailableCurrentChanged) EventName() string { return EVENT_AVAILABLE_CURRENT_CHANGED }

type MeterUpdated struct {
	Data MeterDataSet `json:"data"`
	At   time.Time    `json:"at"`
}

func (MeterUpdated) EventName() string { return EVENT_METER_UPDATED }

type StateSnapshot struct {
	Snapshot EnergySnapshot `json:"snapshot"`
	Config   EnergyConfig   `json:"config"`
}

func (StateSnapshot) EventName() string { return EVENT_STATE_SNAPSHOT }

// ensure interface compliance
var (
	_ EnergyEvent = (*OverLimit)(nil)
	_ EnergyEvent = (*AvailableCurrentChanged)(nil)
	_ EnergyEvent = (*MeterUpdated)(nil)
	_ EnergyEvent = (*StateSnapshot)(nil)
)
