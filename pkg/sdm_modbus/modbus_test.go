package sdm_modbus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMeterReadings(t *testing.T) {
	reader := NewTestMeterModbusReader()

	require.NoError(t, reader.Open())
	require.NoError(t, reader.Validate())

	readings, err := reader.GetReadings()
	require.NoError(t, err)
	assert.Equal(t, 15.2, readings.Current[0])
	assert.Equal(t, readings.Current[0], readings.Current[1])
	assert.Equal(t, []float64{1523.45, 0, 0, 0}, readings.Energy.Slice())

	require.NoError(t, reader.Close())
}

func TestMeterReadingsError(t *testing.T) {
	reader := NewTestMeterModbusReader()
	reader.SetError(errors.New("timeout"))

	_, err := reader.GetReadings()
	assert.EqualError(t, err, "timeout")

	reader.SetError(nil)
	reader.SetReadings(MeterReadings{Power: PhaseReadings{9000, 3000, 3000, 3000}})
	readings, err := reader.GetReadings()
	require.NoError(t, err)
	assert.Equal(t, 9000.0, readings.Power[0])
}

func TestMeterInfo(t *testing.T) {
	reader, err := CreateTestMeterModbusReader()
	require.NoError(t, err)

	info, err := reader.GetInfo()
	require.NoError(t, err)
	assert.Equal(t, "Eastron", info.Manufacturer)
	assert.NotEmpty(t, info.Serial)
}

func TestMeterModel(t *testing.T) {
	assert.Equal(t, "SDM72D-M", meterModel(0x0084))
	assert.Equal(t, "SDM (0x0042)", meterModel(0x0042))
}

func TestRecordTimer(t *testing.T) {
	var recorded []string
	inst := []ModbusInstrument{{
		RecordTime: func(fnName string, readTime time.Duration) {
			recorded = append(recorded, fnName)
			assert.GreaterOrEqual(t, readTime, time.Duration(0))
		},
	}}

	RecordTimer("ReadFloat32s", inst)()
	RecordTimer("ReadFloat32", nil)()

	assert.Equal(t, []string{"ReadFloat32s"}, recorded)
}

func TestCreateSDMModbusReader(t *testing.T) {
	reader, err := CreateSDMModbusReader("127.0.0.1", 502, 1, 100*time.Millisecond, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.IsType(t, &SDMModbusReader{}, reader)
}
