package sdm_modbus

import "sync"

func CreateTestMeterModbusReader() (MeterModbusReader, error) {
	return NewTestMeterModbusReader(), nil
}

// TestMeterModbusReader serves fixed readings and lets tests swap them.
type TestMeterModbusReader struct {
	mu       sync.Mutex
	readings MeterReadings
	err      error
	opened   bool
}

func NewTestMeterModbusReader() *TestMeterModbusReader {
	return &TestMeterModbusReader{
		readings: MeterReadings{
			Current: PhaseReadings{15.2, 15.2, 0, 0},
			Voltage: PhaseReadings{231.4, 231.4, 0, 0},
			Power:   PhaseReadings{3517.3, 3517.3, 0, 0},
			Energy:  PhaseReadings{1523.45, 0, 0, 0},
		},
	}
}

func (reader *TestMeterModbusReader) SetReadings(readings MeterReadings) {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.readings = readings
}

func (reader *TestMeterModbusReader) SetError(err error) {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.err = err
}

func (reader *TestMeterModbusReader) Open() error {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.opened = true
	return nil
}

func (reader *TestMeterModbusReader) Close() error {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.opened = false
	return nil
}

func (reader *TestMeterModbusReader) Validate() error {
	return nil
}

func (reader *TestMeterModbusReader) GetInfo() (*MeterInfo, error) {
	return &MeterInfo{
		Manufacturer: "Eastron",
		Model:        "SDM72D-M",
		Serial:       "21100042",
	}, nil
}

func (reader *TestMeterModbusReader) GetReadings() (*MeterReadings, error) {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	if reader.err != nil {
		return nil, reader.err
	}
	readings := reader.readings
	return &readings, nil
}

// ensure interface compliance
var _ MeterModbusReader = (*TestMeterModbusReader)(nil)
var _ MeterModbusReader = (*SDMModbusReader)(nil)
