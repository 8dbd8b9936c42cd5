package service

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/core/port"
	"go.uber.org/zap"
)

// EnergyManager is the single owner of the energy state. Every method holds
// the guard only while reading or mutating the state; events are emitted
// after the guard is released so sinks may call back into the manager.
type EnergyManager struct {
	mu     sync.Mutex
	state  domain.EnergyState
	sink   port.EventSink
	clock  clock.Clock
	logger *zap.Logger
}

type EnergyManagerOption func(*EnergyManager)

func WithClock(c clock.Clock) EnergyManagerOption {
	return func(m *EnergyManager) {
		m.clock = c
	}
}

func WithLogger(logger *zap.Logger) EnergyManagerOption {
	return func(m *EnergyManager) {
		m.logger = logger.With(zap.String("component", "manager"))
	}
}

func WithSubscription(watts, volts int32) EnergyManagerOption {
	return func(m *EnergyManager) {
		m.state.SubscriptionWatts = watts
		m.state.LineVoltage = volts
	}
}

func NewEnergyManager(ceilings domain.EnergyCeilings, sink port.EventSink, opts ...EnergyManagerOption) *EnergyManager {
	if sink == nil {
		sink = port.NopSink()
	}
	m := &EnergyManager{
		state:  domain.NewEnergyState(ceilings),
		sink:   sink,
		clock:  clock.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *EnergyManager) Clock() clock.Clock {
	return m.clock
}

// SetCableLimit narrows the cable limit. Requests outside (0, ceiling)
// restore the ceiling.
func (m *EnergyManager) SetCableLimit(requested int32) domain.EnergyConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.CableLimit = narrow(requested, m.state.CableCeiling)
	m.logger.Info("manager@config cable limit", zap.Int32("requested", requested), zap.Int32("effective", m.state.CableLimit))
	return m.state.Config()
}

func (m *EnergyManager) SetBackendLimit(requested int32) domain.EnergyConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.BackendLimit = narrow(requested, m.state.BackendCeiling)
	m.logger.Info("manager@config backend limit", zap.Int32("requested", requested), zap.Int32("effective", m.state.BackendLimit))
	return m.state.Config()
}

func (m *EnergyManager) SetSubscription(watts, volts int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SubscriptionWatts = watts
	m.state.LineVoltage = volts
	m.logger.Info("manager@config subscription", zap.Int32("watts", watts), zap.Int32("volts", volts))
}

// Configure applies both limits at once. A missing field resets that limit.
func (m *EnergyManager) Configure(req domain.ConfigureLimits) domain.EnergyConfig {
	var cable, backend int32
	if req.CableMaxAmps != nil {
		cable = *req.CableMaxAmps
	}
	if req.BackendMaxKW != nil {
		backend = *req.BackendMaxKW
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.CableLimit = narrow(cable, m.state.CableCeiling)
	m.state.BackendLimit = narrow(backend, m.state.BackendCeiling)
	m.logger.Info("manager@config configure", zap.Int32("cable_limit", m.state.CableLimit), zap.Int32("backend_limit", m.state.BackendLimit))
	return m.state.Config()
}

func (m *EnergyManager) EffectiveConfig() domain.EnergyConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Config()
}

func (m *EnergyManager) Ceilings() domain.EnergyCeilings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.EnergyCeilings{
		CableAmps:    m.state.CableCeiling,
		BackendKW:    m.state.BackendCeiling,
		VoltageVolts: m.state.VoltageCeiling,
	}
}

func (m *EnergyManager) PowerLimitWatts() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.PowerLimitWatts()
}

// Evaluate folds a complete data set into the state and emits at most one
// OverLimit event.
func (m *EnergyManager) Evaluate(data domain.MeterDataSet) {
	event := m.evaluate(data)
	if event != nil {
		m.logger.Warn("manager@evaluate over limit",
			zap.Stringer("category", event.Category),
			zap.Int32("limit", event.Limit),
			zap.Float64("value", event.Value))
		m.emit(*event)
	}
}

func (m *EnergyManager) evaluate(data domain.MeterDataSet) *domain.OverLimit {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch data.Category {
	case domain.MeterCategoryCurrent:
		m.touch()
		m.state.Current = data.Total
		if value, over := phaseOver(data, m.state.CableLimit*domain.Scale); over {
			return &domain.OverLimit{Category: data.Category, Limit: m.state.CableLimit, Value: domain.FromFixed(value)}
		}
	case domain.MeterCategoryVoltage:
		m.touch()
		m.state.Voltage = data.Total
		if value, over := phaseOver(data, m.state.VoltageCeiling*domain.Scale); over {
			return &domain.OverLimit{Category: data.Category, Limit: m.state.VoltageCeiling, Value: domain.FromFixed(value)}
		}
	case domain.MeterCategoryPower:
		m.touch()
		m.state.Power = data.Total
		limit := m.state.PowerLimitWatts()
		if int64(data.Total) > int64(limit)*domain.Scale {
			return &domain.OverLimit{Category: data.Category, Limit: limit, Value: domain.FromFixed(data.Total)}
		}
	case domain.MeterCategoryEnergy:
		m.touch()
		m.state.SessionEnergy = data.Total
	case domain.MeterCategoryOverCurrent:
		return &domain.OverLimit{Category: data.Category, Limit: m.state.PowerLimitWatts(), Value: domain.FromFixed(data.Total)}
	default:
		m.logger.Debug("manager@evaluate ignored", zap.Stringer("category", data.Category))
	}
	return nil
}

// AvailableCurrent returns the load current allocatable without breaching
// 80% of the power limit, along with the effective cable limit.
func (m *EnergyManager) AvailableCurrent(data domain.MeterDataSet) (amps int32, cableLimit int32) {
	phases := int64(data.PhaseCount())

	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := int64(m.state.PowerLimitWatts())*domain.Scale*domain.HEADROOM_PERCENT/100 - int64(m.state.Power)
	volts := int64(m.state.Voltage)
	if volts <= 0 {
		if m.state.LineVoltage > 0 {
			volts = int64(m.state.LineVoltage) * domain.Scale
		} else {
			volts = domain.DEFAULT_LINE_VOLTAGE * domain.Scale
		}
	}
	available := remaining / volts / phases
	if available < 0 {
		available = 0
	}
	return int32(available), m.state.CableLimit
}

// Snapshot returns the observed values stamped with the current time.
func (m *EnergyManager) Snapshot() domain.EnergySnapshot {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	state.Timestamp = m.clock.Now()
	return state.Snapshot()
}

func (m *EnergyManager) PublishSnapshot() {
	m.emit(domain.StateSnapshot{
		Snapshot: m.Snapshot(),
		Config:   m.EffectiveConfig(),
	})
}

func (m *EnergyManager) emit(event domain.EnergyEvent) {
	m.sink.Notify(event)
}

// touch must be called with the guard held.
func (m *EnergyManager) touch() {
	m.state.UpdatedAt = m.clock.Now()
}

func narrow(requested, ceiling int32) int32 {
	if requested > 0 && requested < ceiling {
		return requested
	}
	return ceiling
}

func phaseOver(data domain.MeterDataSet, limit int32) (int32, bool) {
	for _, value := range []int32{data.L1, data.L2, data.L3} {
		if value > limit {
			return value, true
		}
	}
	return 0, false
}
