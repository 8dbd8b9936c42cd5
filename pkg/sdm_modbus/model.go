package sdm_modbus

type MeterInfo struct {
	Manufacturer string
	Model        string
	Serial       string
}

// PhaseReadings is one [total, l1, l2, l3] cycle in physical units.
type PhaseReadings [4]float64

func (r PhaseReadings) Slice() []float64 {
	return []float64{r[0], r[1], r[2], r[3]}
}

type MeterReadings struct {
	// Current in A. Total is the sum of phase currents
	Current PhaseReadings
	// Line to neutral voltage in V. Total is the phase average
	Voltage PhaseReadings
	// Active power in W
	Power PhaseReadings
	// Active energy in kWh. Only Total is populated
	Energy PhaseReadings
}

type MeterModbusReader interface {
	Open() error
	Close() error
	Validate() error
	GetInfo() (*MeterInfo, error)
	GetReadings() (*MeterReadings, error)
}
