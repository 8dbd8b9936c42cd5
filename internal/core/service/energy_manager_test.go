package service

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testCeilings = domain.EnergyCeilings{CableAmps: 32, BackendKW: 22, VoltageVolts: 253}

func dataSet(category domain.MeterCategory, total, l1, l2, l3 float64) domain.MeterDataSet {
	data := domain.NewMeterDataSet(category)
	data.Total = domain.ToFixed(total)
	data.L1 = domain.ToFixed(l1)
	data.L2 = domain.ToFixed(l2)
	data.L3 = domain.ToFixed(l3)
	return data
}

func int32Ptr(v int32) *int32 {
	return &v
}

func TestSetCableLimit(t *testing.T) {
	m := NewEnergyManager(testCeilings, nil)

	cases := []struct {
		requested int32
		effective int32
	}{
		{10, 10},
		{1, 1},
		{31, 31},
		{32, 32},
		{33, 32},
		{0, 32},
		{-5, 32},
	}
	for _, c := range cases {
		cfg := m.SetCableLimit(c.requested)
		assert.Equal(t, c.effective, cfg.CableLimit, "requested %d", c.requested)
		assert.Equal(t, c.effective, m.EffectiveConfig().CableLimit)
	}
}

func TestSetBackendLimit(t *testing.T) {
	m := NewEnergyManager(testCeilings, nil)

	assert.Equal(t, int32(9), m.SetBackendLimit(9).BackendLimit)
	assert.Equal(t, int32(22), m.SetBackendLimit(22).BackendLimit)
	assert.Equal(t, int32(22), m.SetBackendLimit(0).BackendLimit)
}

func TestEffectiveConfigReflectsLatestCallPerField(t *testing.T) {
	m := NewEnergyManager(testCeilings, nil)

	m.SetCableLimit(16)
	m.SetBackendLimit(11)
	m.SetCableLimit(20)
	assert.Equal(t, domain.EnergyConfig{CableLimit: 20, BackendLimit: 11}, m.EffectiveConfig())

	m.SetBackendLimit(7)
	m.SetBackendLimit(40)
	assert.Equal(t, domain.EnergyConfig{CableLimit: 20, BackendLimit: 22}, m.EffectiveConfig())
}

func TestConfigure(t *testing.T) {
	m := NewEnergyManager(testCeilings, nil)

	cfg := m.Configure(domain.ConfigureLimits{CableMaxAmps: int32Ptr(16), BackendMaxKW: int32Ptr(9)})
	assert.Equal(t, domain.EnergyConfig{CableLimit: 16, BackendLimit: 9}, cfg)

	// missing field resets to the ceiling
	cfg = m.Configure(domain.ConfigureLimits{CableMaxAmps: int32Ptr(10)})
	assert.Equal(t, domain.EnergyConfig{CableLimit: 10, BackendLimit: 22}, cfg)

	cfg = m.Configure(domain.ConfigureLimits{CableMaxAmps: int32Ptr(0)})
	assert.Equal(t, domain.EnergyConfig{CableLimit: 32, BackendLimit: 22}, cfg)
}

func TestEvaluateCurrentOverCableLimit(t *testing.T) {
	sink := &mockSink{}
	m := NewEnergyManager(testCeilings, sink)
	m.SetCableLimit(10)

	sink.On("Notify", domain.OverLimit{Category: domain.MeterCategoryCurrent, Limit: 10, Value: 15}).Once()

	m.Evaluate(dataSet(domain.MeterCategoryCurrent, 15, 15, 0, 0))

	sink.AssertExpectations(t)
	sink.AssertNumberOfCalls(t, "Notify", 1)
	assert.Equal(t, 15.0, m.Snapshot().Current)
}

func TestEvaluateCurrentWithinLimit(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)

	m.Evaluate(dataSet(domain.MeterCategoryCurrent, 30, 10, 10, 10))
	m.Evaluate(dataSet(domain.MeterCategoryCurrent, 32, 32, 0, 0))

	assert.Empty(t, sink.overLimits())
}

func TestEvaluateVoltageOverCeiling(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)

	m.Evaluate(dataSet(domain.MeterCategoryVoltage, 240, 230, 255.5, 235))

	require.Len(t, sink.overLimits(), 1)
	assert.Equal(t, domain.OverLimit{Category: domain.MeterCategoryVoltage, Limit: 253, Value: 255.5}, sink.overLimits()[0])
	assert.Equal(t, 240.0, m.Snapshot().Voltage)
}

func TestEvaluatePowerOverLimit(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink, WithSubscription(9000, 230))

	m.Evaluate(dataSet(domain.MeterCategoryPower, 9000, 9000, 0, 0))
	assert.Empty(t, sink.overLimits())

	m.Evaluate(dataSet(domain.MeterCategoryPower, 9000.5, 9000.5, 0, 0))
	require.Len(t, sink.overLimits(), 1)
	assert.Equal(t, domain.OverLimit{Category: domain.MeterCategoryPower, Limit: 9000, Value: 9000.5}, sink.overLimits()[0])
}

func TestEvaluateEnergyNeverEmits(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)

	m.Evaluate(dataSet(domain.MeterCategoryEnergy, 99999, 0, 0, 0))

	assert.Empty(t, sink.events)
	assert.Equal(t, 99999.0, m.Snapshot().SessionEnergy)
}

func TestEvaluateOverCurrentAlwaysEmits(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink, WithSubscription(6000, 230))

	for _, value := range []float64{0, 0.01, 45, 1000} {
		m.Evaluate(dataSet(domain.MeterCategoryOverCurrent, value, 0, 0, 0))
	}

	overLimits := sink.overLimits()
	require.Len(t, overLimits, 4)
	for _, ol := range overLimits {
		assert.Equal(t, domain.MeterCategoryOverCurrent, ol.Category)
		assert.Equal(t, int32(6000), ol.Limit)
	}
}

func TestEvaluateIsNotDeduplicated(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)
	m.SetCableLimit(10)

	data := dataSet(domain.MeterCategoryCurrent, 15, 15, 0, 0)
	m.Evaluate(data)
	m.Evaluate(data)
	m.Evaluate(data)

	assert.Len(t, sink.overLimits(), 3)
}

func TestEvaluateUnsetIgnored(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)
	before := m.Snapshot()

	m.Evaluate(dataSet(domain.MeterCategoryUnset, 1000, 1000, 1000, 1000))
	m.Evaluate(dataSet(domain.MeterCategory(42), 1000, 1000, 1000, 1000))

	assert.Empty(t, sink.events)
	after := m.Snapshot()
	assert.Equal(t, before.Current, after.Current)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestAvailableCurrentSinglePhase(t *testing.T) {
	m := NewEnergyManager(testCeilings, nil)
	m.Evaluate(dataSet(domain.MeterCategoryVoltage, 230, 230, 0, 0))
	power := dataSet(domain.MeterCategoryPower, 5000, 5000, 0, 0)
	m.Evaluate(power)

	// (0.8 * 22000 - 5000) / 230 / 1
	amps, cableLimit := m.AvailableCurrent(power)
	assert.Equal(t, int32(54), amps)
	assert.Equal(t, int32(32), cableLimit)
}

func TestAvailableCurrentThreePhase(t *testing.T) {
	m := NewEnergyManager(testCeilings, nil)
	m.Evaluate(dataSet(domain.MeterCategoryVoltage, 230, 230, 230, 230))
	power := dataSet(domain.MeterCategoryPower, 6000, 2000, 2000, 2000)
	m.Evaluate(power)

	// (17600 - 6000) / 230 / 3
	amps, _ := m.AvailableCurrent(power)
	assert.Equal(t, int32(16), amps)
}

func TestAvailableCurrentVoltageFallback(t *testing.T) {
	power := dataSet(domain.MeterCategoryPower, 0, 0, 0, 0)

	// declared line voltage
	m := NewEnergyManager(testCeilings, nil, WithSubscription(0, 220))
	amps, _ := m.AvailableCurrent(power)
	assert.Equal(t, int32(80), amps)

	// default voltage
	m = NewEnergyManager(testCeilings, nil)
	amps, _ = m.AvailableCurrent(power)
	assert.Equal(t, int32(76), amps)
}

func TestAvailableCurrentNegativeHeadroom(t *testing.T) {
	m := NewEnergyManager(testCeilings, nil, WithSubscription(3000, 230))
	power := dataSet(domain.MeterCategoryPower, 5000, 5000, 0, 0)
	m.Evaluate(power)

	amps, _ := m.AvailableCurrent(power)
	assert.Equal(t, int32(0), amps)
}

func TestSnapshotStampsCopyOnly(t *testing.T) {
	mockClock := clock.NewMock()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mockClock.Set(start)
	m := NewEnergyManager(testCeilings, nil, WithClock(mockClock))

	m.Evaluate(dataSet(domain.MeterCategoryCurrent, 12.5, 12.5, 0, 0))
	mockClock.Add(5 * time.Second)

	snap := m.Snapshot()
	assert.Equal(t, start.Add(5*time.Second), snap.Timestamp)
	assert.Equal(t, start, snap.UpdatedAt)
	assert.Equal(t, 12.5, snap.Current)

	mockClock.Add(time.Second)
	assert.Equal(t, start.Add(6*time.Second), m.Snapshot().Timestamp)
	assert.Equal(t, start, m.Snapshot().UpdatedAt)
}

func TestSinkMayReenterManager(t *testing.T) {
	var m *EnergyManager
	sink := port.EventSinkFunc(func(event domain.EnergyEvent) {
		if ol, ok := event.(domain.OverLimit); ok && ol.Category == domain.MeterCategoryCurrent {
			m.SetCableLimit(6)
		}
	})
	m = NewEnergyManager(testCeilings, sink)
	m.SetCableLimit(10)

	done := make(chan struct{})
	go func() {
		m.Evaluate(dataSet(domain.MeterCategoryCurrent, 15, 15, 0, 0))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("evaluate did not return")
	}
	assert.Equal(t, int32(6), m.EffectiveConfig().CableLimit)
}

func TestPublishSnapshot(t *testing.T) {
	sink := &mockSink{}
	m := NewEnergyManager(testCeilings, sink)
	sink.On("Notify", mock.AnythingOfType("domain.StateSnapshot")).Once()

	m.PublishSnapshot()

	sink.AssertExpectations(t)
	ev := sink.Calls[0].Arguments.Get(0).(domain.StateSnapshot)
	assert.Equal(t, domain.EnergyConfig{CableLimit: 32, BackendLimit: 22}, ev.Config)
}
