package metrics

import (
	"strconv"
	"time"

	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/core/port"
	"github.com/berfenger/engymgr/pkg/sdm_modbus"
	"github.com/prometheus/client_golang/prometheus"
)

const NAMESPACE = "engymgr"

// Collector exposes energy events as prometheus metrics. It is an EventSink.
type Collector struct {
	overLimits       *prometheus.CounterVec
	availableCurrent prometheus.Gauge
	meterReadings    *prometheus.GaugeVec
	limits           *prometheus.GaugeVec
	snapshots        prometheus.Counter
	modbusReads      *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		overLimits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "over_limit_total",
			Help:      "Over limit events by meter category.",
		}, []string{"category"}),
		availableCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "available_current_amps",
			Help:      "Last computed available load current.",
		}),
		meterReadings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "meter_reading",
			Help:      "Last accepted meter reading by category and phase (0 is total).",
		}, []string{"category", "phase"}),
		limits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "effective_limit",
			Help:      "Effective limits (cable in A, backend in kW).",
		}, []string{"limit"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "state_snapshots_total",
			Help:      "Published state snapshots.",
		}),
		modbusReads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: NAMESPACE,
			Name:      "modbus_read_seconds",
			Help:      "Meter modbus read latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"fn"}),
	}
	reg.MustRegister(c.overLimits, c.availableCurrent, c.meterReadings, c.limits, c.snapshots, c.modbusReads)
	return c
}

func (c *Collector) Notify(event domain.EnergyEvent) {
	switch e := event.(type) {
	case domain.OverLimit:
		c.overLimits.WithLabelValues(e.Category.String()).Inc()
	case domain.AvailableCurrentChanged:
		c.availableCurrent.Set(float64(e.Amps))
	case domain.MeterUpdated:
		readings := e.Data.Readings()
		category := e.Data.Category.String()
		for phase, value := range []float64{readings.Total, readings.L1, readings.L2, readings.L3} {
			c.meterReadings.WithLabelValues(category, strconv.Itoa(phase)).Set(value)
		}
	case domain.StateSnapshot:
		c.snapshots.Inc()
		c.limits.WithLabelValues("cable").Set(float64(e.Config.CableLimit))
		c.limits.WithLabelValues("backend").Set(float64(e.Config.BackendLimit))
	}
}

// ModbusInstrument records meter read latency.
func (c *Collector) ModbusInstrument() *sdm_modbus.ModbusInstrument {
	return &sdm_modbus.ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			c.modbusReads.WithLabelValues(fnName).Observe(readTime.Seconds())
		},
	}
}

var _ port.EventSink = (*Collector)(nil)
