package domain

import "fmt"

// EnergyCommand is a request routed by the master actor to the energy
// manager or the meter bank.
type EnergyCommand interface {
	ActorRequest
	EnergyCommand() string
}

type EnergyCommandMixIn struct {
	ActorRequestMixIn
}

func (r EnergyCommandMixIn) EnergyCommand() string {
	return fmt.Sprintf("%T", r)
}

type EnergyCommandResponse struct {
	ActorResponseMixIn
	Config *EnergyConfig
}

type SetCableLimitCommand struct {
	EnergyCommandMixIn
	Amps int32
}

type SetBackendLimitCommand struct {
	EnergyCommandMixIn
	KW int32
}

type ConfigureLimitsCommand struct {
	EnergyCommandMixIn
	Limits ConfigureLimits
}

type ResetEnergySessionCommand struct {
	EnergyCommandMixIn
}

// IngestTelemetryCommand carries one external [total, l1, l2, l3] cycle.
type IngestTelemetryCommand struct {
	EnergyCommandMixIn
	Category MeterCategory
	Readings []float64
}

// ensure interface compliance
var (
	_ EnergyCommand = (*SetCableLimitCommand)(nil)
	_ EnergyCommand = (*SetBackendLimitCommand)(nil)
	_ EnergyCommand = (*ConfigureLimitsCommand)(nil)
	_ EnergyCommand = (*ResetEnergySessionCommand)(nil)
	_ EnergyCommand = (*IngestTelemetryCommand)(nil)
)
