package service

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCableLimitScenario(t *testing.T) {
	sink := &mockSink{}
	m := NewEnergyManager(testCeilings, sink)
	bank := NewMeterBank(m, 0)

	assert.Equal(t, int32(10), m.SetCableLimit(10).CableLimit)

	sink.On("Notify", domain.OverLimit{Category: domain.MeterCategoryCurrent, Limit: 10, Value: 15}).Once()
	sink.On("Notify", mock.AnythingOfType("domain.MeterUpdated")).Once()

	require.NoError(t, bank.IngestCycle(domain.MeterCategoryCurrent, []float64{15, 15, 0, 0}))

	sink.AssertExpectations(t)
	sink.AssertNumberOfCalls(t, "Notify", 2)
}

func TestIngestEvaluatesOnAcceptedTotal(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)
	m.SetCableLimit(10)
	ch := NewMeterChannel(domain.MeterCategoryCurrent, 0, m)

	// phases alone never complete a cycle
	require.NoError(t, ch.Ingest(domain.PHASE_L1, 15))
	assert.Empty(t, sink.events)

	require.NoError(t, ch.Ingest(domain.PHASE_TOTAL, 15))
	assert.Len(t, sink.overLimits(), 1)
	assert.Equal(t, 1, sink.count(domain.EVENT_METER_UPDATED))
	assert.False(t, ch.Read().Dirty)
}

func TestIngestTotalFirstUsesHeldPhases(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)
	m.SetCableLimit(10)
	ch := NewMeterChannel(domain.MeterCategoryCurrent, 0, m)

	// evaluated with the L1 held so far
	require.NoError(t, ch.Ingest(domain.PHASE_TOTAL, 15))
	assert.Empty(t, sink.overLimits())

	require.NoError(t, ch.Ingest(domain.PHASE_L1, 15))
	assert.Empty(t, sink.overLimits())

	// the same cycle as one call sees every slot
	require.NoError(t, ch.IngestCycle([]float64{15, 15}))
	assert.Len(t, sink.overLimits(), 1)
}

func TestIngestRegressedTotalDoesNotEvaluate(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)
	ch := NewMeterChannel(domain.MeterCategoryPower, 0, m)

	require.NoError(t, ch.IngestCycle([]float64{3000, 1000, 1000, 1000}))
	assert.Equal(t, 1, sink.count(domain.EVENT_METER_UPDATED))

	// below previous total and below the L3 reference
	require.NoError(t, ch.Ingest(domain.PHASE_TOTAL, 500))
	assert.Equal(t, 1, sink.count(domain.EVENT_METER_UPDATED))
	assert.Equal(t, int32(300000), ch.Read().Total)
}

func TestIngestInvalidPhase(t *testing.T) {
	m := NewEnergyManager(testCeilings, nil)
	bank := NewMeterBank(m, 0)

	err := bank.Ingest(domain.MeterCategoryCurrent, 7, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)

	err = bank.IngestCycle(domain.MeterCategoryCurrent, []float64{1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, domain.ErrInvalidPhase)
	data, _ := bank.Read(domain.MeterCategoryCurrent)
	assert.Equal(t, int32(0), data.Total)

	// other categories keep working
	require.NoError(t, bank.Ingest(domain.MeterCategoryVoltage, domain.PHASE_TOTAL, 230))
	data, _ = bank.Read(domain.MeterCategoryVoltage)
	assert.Equal(t, int32(23000), data.Total)
}

func TestIngestBusyChannel(t *testing.T) {
	m := NewEnergyManager(testCeilings, nil)
	ch := NewMeterChannel(domain.MeterCategoryCurrent, 0, m)

	ch.mu.Lock()
	err := ch.Ingest(domain.PHASE_TOTAL, 10)
	assert.ErrorIs(t, err, domain.ErrMeterBusy)
	err = ch.IngestCycle([]float64{10})
	assert.ErrorIs(t, err, domain.ErrMeterBusy)
	_, err = ch.ResetBaseline()
	assert.ErrorIs(t, err, domain.ErrMeterBusy)
	ch.mu.Unlock()

	// next independent callback succeeds
	require.NoError(t, ch.Ingest(domain.PHASE_TOTAL, 10))
}

func TestPowerChannelAvailableCurrent(t *testing.T) {
	sink := &collectSink{}
	ceilings := domain.EnergyCeilings{CableAmps: 63, BackendKW: 22, VoltageVolts: 253}
	m := NewEnergyManager(ceilings, sink)
	bank := NewMeterBank(m, 0)

	require.NoError(t, bank.IngestCycle(domain.MeterCategoryVoltage, []float64{230, 230, 0, 0}))
	require.NoError(t, bank.IngestCycle(domain.MeterCategoryPower, []float64{5000, 5000, 0, 0}))

	require.Len(t, sink.availableCurrents(), 1)
	assert.Equal(t, int32(54), sink.availableCurrents()[0].Amps)
}

func TestPowerChannelCableIsBinding(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)
	bank := NewMeterBank(m, 0)

	require.NoError(t, bank.IngestCycle(domain.MeterCategoryVoltage, []float64{230, 230, 0, 0}))
	require.NoError(t, bank.IngestCycle(domain.MeterCategoryPower, []float64{5000, 5000, 0, 0}))

	// 54A of headroom is looser than the 32A cable
	assert.Empty(t, sink.availableCurrents())

	m.SetCableLimit(10)
	require.NoError(t, bank.IngestCycle(domain.MeterCategoryPower, []float64{5000, 5000, 0, 0}))
	assert.Empty(t, sink.availableCurrents())
}

func TestOverCurrentChannelEmitsPerIngestion(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink, WithSubscription(9000, 230))
	bank := NewMeterBank(m, 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, bank.IngestCycle(domain.MeterCategoryOverCurrent, []float64{float64(40 + i)}))
	}

	overLimits := sink.overLimits()
	require.Len(t, overLimits, 3)
	assert.Equal(t, domain.OverLimit{Category: domain.MeterCategoryOverCurrent, Limit: 9000, Value: 42}, overLimits[2])
}

func TestOverCurrentChannelEmitsOnLowerReadings(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink, WithSubscription(9000, 230))
	bank := NewMeterBank(m, 0)

	require.NoError(t, bank.IngestCycle(domain.MeterCategoryOverCurrent, []float64{45, 15, 15, 15}))
	require.NoError(t, bank.IngestCycle(domain.MeterCategoryOverCurrent, []float64{12, 4, 4, 4}))
	require.NoError(t, bank.IngestCycle(domain.MeterCategoryOverCurrent, []float64{12, 4, 4, 4}))

	overLimits := sink.overLimits()
	require.Len(t, overLimits, 3)
	assert.Equal(t, domain.OverLimit{Category: domain.MeterCategoryOverCurrent, Limit: 9000, Value: 45}, overLimits[0])
	assert.Equal(t, domain.OverLimit{Category: domain.MeterCategoryOverCurrent, Limit: 9000, Value: 12}, overLimits[2])
}

func TestIngestCycleRejectsOutOfRangeReading(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)
	bank := NewMeterBank(m, 0)

	err := bank.IngestCycle(domain.MeterCategoryPower, []float64{3e7, 3e7, 0, 0})
	assert.ErrorIs(t, err, domain.ErrInvalidReading)
	data, ok := bank.Read(domain.MeterCategoryPower)
	require.True(t, ok)
	assert.Equal(t, int32(0), data.Total)
	assert.Empty(t, sink.events)
}

func TestEnergySessionReset(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)
	bank := NewMeterBank(m, 0)

	require.NoError(t, bank.IngestCycle(domain.MeterCategoryEnergy, []float64{1523.45}))
	assert.Equal(t, 1523.45, m.Snapshot().SessionEnergy)

	data, err := bank.ResetEnergy()
	require.NoError(t, err)
	assert.Equal(t, int32(0), data.Total)
	assert.Equal(t, 0.0, m.Snapshot().SessionEnergy)

	require.NoError(t, bank.IngestCycle(domain.MeterCategoryEnergy, []float64{1525.95}))
	assert.Equal(t, 2.5, m.Snapshot().SessionEnergy)
}

func TestResetUnsupportedCategory(t *testing.T) {
	m := NewEnergyManager(testCeilings, nil)
	bank := NewMeterBank(m, 0, domain.MeterCategoryPower)

	ch, ok := bank.Channel(domain.MeterCategoryPower)
	require.True(t, ok)
	_, err := ch.ResetBaseline()
	assert.ErrorIs(t, err, domain.ErrResetUnsupported)

	_, err = bank.ResetEnergy()
	assert.ErrorIs(t, err, domain.ErrResetUnsupported)
}

func TestBankIgnoresMissingCategory(t *testing.T) {
	m := NewEnergyManager(testCeilings, nil)
	bank := NewMeterBank(m, 0, domain.MeterCategoryCurrent)

	assert.NoError(t, bank.Ingest(domain.MeterCategoryUnset, domain.PHASE_TOTAL, 10))
	assert.NoError(t, bank.IngestCycle(domain.MeterCategoryPower, []float64{10}))
	_, ok := bank.Read(domain.MeterCategoryPower)
	assert.False(t, ok)
}

func TestChannelTimestampsPerSlot(t *testing.T) {
	mockClock := clock.NewMock()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mockClock.Set(start)
	m := NewEnergyManager(testCeilings, nil, WithClock(mockClock))
	ch := NewMeterChannel(domain.MeterCategoryCurrent, 0, m)

	require.NoError(t, ch.Ingest(domain.PHASE_L2, 4))
	mockClock.Add(time.Second)
	require.NoError(t, ch.Ingest(domain.PHASE_TOTAL, 4))

	data := ch.Read()
	assert.Equal(t, start, data.UpdatedAt[domain.PHASE_L2])
	assert.Equal(t, start.Add(time.Second), data.UpdatedAt[domain.PHASE_TOTAL])
	assert.True(t, data.UpdatedAt[domain.PHASE_L1].IsZero())
}

func TestDistinctCategoriesIngestConcurrently(t *testing.T) {
	sink := &collectSink{}
	m := NewEnergyManager(testCeilings, sink)
	bank := NewMeterBank(m, 0)

	var wg sync.WaitGroup
	for _, category := range []domain.MeterCategory{domain.MeterCategoryCurrent, domain.MeterCategoryVoltage, domain.MeterCategoryEnergy} {
		wg.Add(1)
		go func(category domain.MeterCategory) {
			defer wg.Done()
			for i := 1; i <= 50; i++ {
				assert.NoError(t, bank.IngestCycle(category, []float64{float64(i)}))
			}
		}(category)
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, 50.0, snap.Current)
	assert.Equal(t, 50.0, snap.Voltage)
	assert.Equal(t, 50.0, snap.SessionEnergy)
	assert.Equal(t, 150, sink.count(domain.EVENT_METER_UPDATED))
}
