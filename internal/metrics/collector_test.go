package metrics

import (
	"testing"
	"time"

	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorEvents(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.Notify(domain.OverLimit{Category: domain.MeterCategoryCurrent, Limit: 10, Value: 15})
	c.Notify(domain.OverLimit{Category: domain.MeterCategoryCurrent, Limit: 10, Value: 16})
	c.Notify(domain.AvailableCurrentChanged{Amps: 21})

	data := domain.NewMeterDataSet(domain.MeterCategoryPower)
	data.Total, data.L1 = 350000, 350000
	c.Notify(domain.MeterUpdated{Data: data})
	c.Notify(domain.StateSnapshot{Config: domain.EnergyConfig{CableLimit: 16, BackendLimit: 9}})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.overLimits.WithLabelValues("current")))
	assert.Equal(t, 21.0, testutil.ToFloat64(c.availableCurrent))
	assert.Equal(t, 3500.0, testutil.ToFloat64(c.meterReadings.WithLabelValues("power", "0")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.meterReadings.WithLabelValues("power", "3")))
	assert.Equal(t, 16.0, testutil.ToFloat64(c.limits.WithLabelValues("cable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.snapshots))
}

func TestCollectorModbusInstrument(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	inst := c.ModbusInstrument()

	inst.RecordTime("ReadFloat32s", 12*time.Millisecond)
	inst.RecordTime("ReadFloat32s", 30*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(c.modbusReads))
}
