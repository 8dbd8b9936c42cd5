package domain

import "time"

const (
	// DEFAULT_LINE_VOLTAGE is used for headroom computation until a voltage
	// reading or a declared line voltage is available.
	DEFAULT_LINE_VOLTAGE = 230
	// HEADROOM_PERCENT of the power limit is allocatable to the load.
	HEADROOM_PERCENT = 80
)

// EnergyCeilings are the hardware limits fixed at construction.
type EnergyCeilings struct {
	CableAmps    int32 // A
	BackendKW    int32 // kW
	VoltageVolts int32 // V
}

// EnergyState is the aggregate state owned by the energy manager.
// Ceilings and effective limits are in configuration units, observed values
// are fixed point.
type EnergyState struct {
	CableCeiling   int32
	BackendCeiling int32
	VoltageCeiling int32

	CableLimit   int32
	BackendLimit int32

	SubscriptionWatts int32
	LineVoltage       int32

	Current       int32
	Voltage       int32
	Power         int32
	SessionEnergy int32
	UpdatedAt     time.Time
	Timestamp     time.Time
}

func NewEnergyState(ceilings EnergyCeilings) EnergyState {
	return EnergyState{
		CableCeiling:   ceilings.CableAmps,
		BackendCeiling: ceilings.BackendKW,
		VoltageCeiling: ceilings.VoltageVolts,
		CableLimit:     ceilings.CableAmps,
		BackendLimit:   ceilings.BackendKW,
	}
}

// PowerLimitWatts is the tighter of the backend limit and the contractual
// subscription, in whole watts.
func (s EnergyState) PowerLimitWatts() int32 {
	limit := s.BackendLimit * 1000
	if s.SubscriptionWatts > 0 && s.SubscriptionWatts < limit {
		return s.SubscriptionWatts
	}
	return limit
}

func (s EnergyState) Config() EnergyConfig {
	return EnergyConfig{
		CableLimit:   s.CableLimit,
		BackendLimit: s.BackendLimit,
	}
}

func (s EnergyState) Snapshot() EnergySnapshot {
	return EnergySnapshot{
		Current:       FromFixed(s.Current),
		Voltage:       FromFixed(s.Voltage),
		Power:         FromFixed(s.Power),
		SessionEnergy: FromFixed(s.SessionEnergy),
		UpdatedAt:     s.UpdatedAt,
		Timestamp:     s.Timestamp,
	}
}

type EnergyConfig struct {
	CableLimit   int32 `json:"cable_limit"`
	BackendLimit int32 `json:"backend_limit"`
}

// ConfigureLimits is the configuration request. A nil or zero field resets
// that limit to its ceiling.
type ConfigureLimits struct {
	CableMaxAmps *int32 `json:"cable_max_amps,omitempty"`
	BackendMaxKW *int32 `json:"backend_max_kw,omitempty"`
}

type EnergySnapshot struct {
	Current       float64   `json:"current"`
	Voltage       float64   `json:"voltage"`
	Power         float64   `json:"power"`
	SessionEnergy float64   `json:"session_energy"`
	UpdatedAt     time.Time `json:"updated_at"`
	Timestamp     time.Time `json:"timestamp"`
}
