package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Scale is the fixed-point factor applied to every telemetry reading.
// A reading of 15.2A is stored as 1520, 230.4V as 23040, 5kW as 500000.
const Scale = 100

const (
	PHASE_TOTAL = 0
	PHASE_L1    = 1
	PHASE_L2    = 2
	PHASE_L3    = 3
	PHASE_COUNT = 4

	DEFAULT_VARIATION_PERCENT = 100
)

type MeterCategory int

const (
	MeterCategoryUnset MeterCategory = iota
	MeterCategoryCurrent
	MeterCategoryVoltage
	MeterCategoryPower
	MeterCategoryEnergy
	MeterCategoryOverCurrent
)

// MeterCategories lists every category backed by a long-lived data set.
var MeterCategories = []MeterCategory{
	MeterCategoryCurrent,
	MeterCategoryVoltage,
	MeterCategoryPower,
	MeterCategoryEnergy,
	MeterCategoryOverCurrent,
}

func (c MeterCategory) String() string {
	switch c {
	case MeterCategoryCurrent:
		return "current"
	case MeterCategoryVoltage:
		return "voltage"
	case MeterCategoryPower:
		return "power"
	case MeterCategoryEnergy:
		return "energy"
	case MeterCategoryOverCurrent:
		return "overcurrent"
	default:
		return "unset"
	}
}

func (c MeterCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *MeterCategory) UnmarshalText(text []byte) error {
	cat, err := ParseMeterCategory(string(text))
	if err != nil {
		return err
	}
	*c = cat
	return nil
}

func ParseMeterCategory(name string) (MeterCategory, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "current":
		return MeterCategoryCurrent, nil
	case "voltage", "tension":
		return MeterCategoryVoltage, nil
	case "power":
		return MeterCategoryPower, nil
	case "energy":
		return MeterCategoryEnergy, nil
	case "overcurrent", "iover":
		return MeterCategoryOverCurrent, nil
	case "unset", "":
		return MeterCategoryUnset, nil
	}
	return MeterCategoryUnset, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// ToFixed converts a physical reading to the fixed-point representation,
// rounding half away from zero.
func ToFixed(reading float64) int32 {
	return int32(math.Round(reading * Scale))
}

func toFixedChecked(reading float64) (int32, error) {
	if math.IsNaN(reading) || math.IsInf(reading, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidReading, reading)
	}
	scaled := math.Round(reading * Scale)
	if scaled > math.MaxInt32 || scaled < math.MinInt32 {
		return 0, fmt.Errorf("%w: %v out of range", ErrInvalidReading, reading)
	}
	return int32(scaled), nil
}

func FromFixed(value int32) float64 {
	return float64(value) / Scale
}

// MeterDataSet is the multi-phase snapshot of one telemetry category.
// Slots hold fixed-point values. Dirty is raised only when Total is accepted
// and is the signal that downstream evaluation should run.
type MeterDataSet struct {
	Category  MeterCategory          `json:"category"`
	Total     int32                  `json:"total"`
	L1        int32                  `json:"l1"`
	L2        int32                  `json:"l2"`
	L3        int32                  `json:"l3"`
	Baseline  int32                  `json:"-"`
	Raw       int32                  `json:"-"`
	Dirty     bool                   `json:"-"`
	Variation int32                  `json:"-"`
	UpdatedAt [PHASE_COUNT]time.Time `json:"-"`
}

func NewMeterDataSet(category MeterCategory) MeterDataSet {
	return MeterDataSet{
		Category:  category,
		Variation: DEFAULT_VARIATION_PERCENT,
	}
}

func (d *MeterDataSet) Update(phase int, reading float64) error {
	return d.UpdateAt(phase, reading, time.Now())
}

// UpdateAt applies one phase reading. A slot only moves forward: the new
// value must reach the previous value (scaled by Variation percent) or
// exceed the last known L3 reference, otherwise the reading is dropped.
// Non-finite readings and readings outside the fixed-point range fail with
// ErrInvalidReading and leave the data set untouched.
func (d *MeterDataSet) UpdateAt(phase int, reading float64, at time.Time) error {
	if phase < PHASE_TOTAL || phase >= PHASE_COUNT {
		return fmt.Errorf("%w: %d", ErrInvalidPhase, phase)
	}
	value, err := toFixedChecked(reading)
	if err != nil {
		return err
	}
	switch phase {
	case PHASE_TOTAL:
		if d.Category == MeterCategoryEnergy {
			value -= d.Baseline
		}
		if !d.accepts(d.Total, value) {
			d.Dirty = false
			return nil
		}
		d.Total = value
		d.Raw = value
		if d.Category == MeterCategoryEnergy {
			d.Raw = value + d.Baseline
		}
		d.Dirty = true
	case PHASE_L1:
		if !d.accepts(d.L1, value) {
			return nil
		}
		d.L1 = value
	case PHASE_L2:
		if !d.accepts(d.L2, value) {
			return nil
		}
		d.L2 = value
	case PHASE_L3:
		// L3 is itself the upper reference, so it is checked against L2
		if !d.accepts(d.L2, value) {
			return nil
		}
		d.L3 = value
	}
	d.UpdatedAt[phase] = at
	return nil
}

// accepts applies the anti-regression filter. Over-current readings are
// trip signals and always pass.
func (d *MeterDataSet) accepts(previous, value int32) bool {
	if d.Category == MeterCategoryOverCurrent {
		return true
	}
	variation := d.Variation
	if variation <= 0 {
		variation = DEFAULT_VARIATION_PERCENT
	}
	floor := int64(previous) * int64(variation) / 100
	return int64(value) >= floor || value > d.L3
}

// ResetBaseline starts a new energy session: the last raw counter becomes
// the baseline and the session total restarts at zero.
func (d *MeterDataSet) ResetBaseline() error {
	if d.Category != MeterCategoryEnergy {
		return fmt.Errorf("%w: %s", ErrResetUnsupported, d.Category)
	}
	d.Baseline = d.Raw
	d.Total = 0
	d.Dirty = false
	return nil
}

// PhaseCount detects the number of active phases from live telemetry.
func (d MeterDataSet) PhaseCount() int32 {
	if d.Total == d.L1 {
		return 1
	}
	var phases int32 = 1
	if d.L2 != 0 {
		phases++
	}
	if d.L3 != 0 {
		phases++
	}
	return phases
}

func (d MeterDataSet) Clone() MeterDataSet {
	return d
}

func (d MeterDataSet) Readings() MeterReadings {
	return MeterReadings{
		Category: d.Category,
		Total:    FromFixed(d.Total),
		L1:       FromFixed(d.L1),
		L2:       FromFixed(d.L2),
		L3:       FromFixed(d.L3),
	}
}

// MeterReadings is the external (unscaled) view of a data set.
type MeterReadings struct {
	Category MeterCategory `json:"category"`
	Total    float64       `json:"total"`
	L1       float64       `json:"l1"`
	L2       float64       `json:"l2"`
	L3       float64       `json:"l3"`
}
