package sdm_modbus

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/avast/retry-go"
	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// Eastron SDM input registers (IEEE754 float32, two registers each).
const (
	REG_VOLTAGE_L1    uint16 = 0x0000
	REG_CURRENT_L1    uint16 = 0x0006
	REG_POWER_L1      uint16 = 0x000C
	REG_VOLTAGE_AVG   uint16 = 0x002A
	REG_CURRENT_SUM   uint16 = 0x0030
	REG_POWER_TOTAL   uint16 = 0x0034
	REG_IMPORT_ENERGY uint16 = 0x0048
	REG_SERIAL_NUMBER uint16 = 0xFC00
	REG_METER_CODE    uint16 = 0xFC02
)

const (
	OPEN_RETRY_ATTEMPTS = 3
	OPEN_RETRY_DELAY    = 500 * time.Millisecond
)

type SDMModbusReader struct {
	ModbusClient
	logger *zap.Logger
}

func CreateSDMModbusReader(ip string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (MeterModbusReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("target", "meter"), zap.Uint8("unit", unitId))
	// instrumentation
	var inst []ModbusInstrument
	if logInst := traceLoggerInstrumentation(logger); logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	if err := client.SetUnitId(unitId); err != nil {
		return nil, err
	}
	if err := client.SetEncoding(modbus.BIG_ENDIAN, modbus.HIGH_WORD_FIRST); err != nil {
		return nil, err
	}
	return &SDMModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		logger: logger,
	}, nil
}

func (reader *SDMModbusReader) Open() error {
	return retry.Do(
		reader.client.Open,
		retry.Attempts(OPEN_RETRY_ATTEMPTS),
		retry.Delay(OPEN_RETRY_DELAY),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			reader.logger.Warn("modbus open failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

func (reader *SDMModbusReader) Close() error {
	return reader.client.Close()
}

func (reader *SDMModbusReader) Validate() error {
	volts, err := reader.readFloat32(REG_VOLTAGE_AVG, modbus.INPUT_REGISTER)
	if err != nil {
		return err
	}
	if math.IsNaN(volts) || volts < 0 || volts > 1000 {
		return errors.New("could not find an SDM energy meter")
	}
	return nil
}

func (reader *SDMModbusReader) GetInfo() (*MeterInfo, error) {
	serial, err := reader.readUint32(REG_SERIAL_NUMBER, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	code, err := reader.readRegister(REG_METER_CODE, modbus.HOLDING_REGISTER)
	if err != nil {
		return nil, err
	}
	return &MeterInfo{
		Manufacturer: "Eastron",
		Model:        meterModel(code),
		Serial:       fmt.Sprintf("%d", serial),
	}, nil
}

func (reader *SDMModbusReader) GetReadings() (*MeterReadings, error) {
	var readings MeterReadings

	phases, err := reader.readFloat32s(REG_VOLTAGE_L1, 3, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	avg, err := reader.readFloat32(REG_VOLTAGE_AVG, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	readings.Voltage = PhaseReadings{avg, phases[0], phases[1], phases[2]}

	phases, err = reader.readFloat32s(REG_CURRENT_L1, 3, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	sum, err := reader.readFloat32(REG_CURRENT_SUM, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	readings.Current = PhaseReadings{sum, phases[0], phases[1], phases[2]}

	phases, err = reader.readFloat32s(REG_POWER_L1, 3, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	total, err := reader.readFloat32(REG_POWER_TOTAL, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	readings.Power = PhaseReadings{total, phases[0], phases[1], phases[2]}

	energy, err := reader.readFloat32(REG_IMPORT_ENERGY, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, err
	}
	readings.Energy = PhaseReadings{energy, 0, 0, 0}

	return &readings, nil
}

func meterModel(code uint16) string {
	switch code {
	case 0x0084:
		return "SDM72D-M"
	case 0x0089:
		return "SDM72D-M-2"
	case 0x0070:
		return "SDM630"
	case 0x0020:
		return "SDM120"
	}
	return fmt.Sprintf("SDM (0x%04X)", code)
}
