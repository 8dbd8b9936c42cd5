package mqtt

import (
	"testing"

	"github.com/berfenger/engymgr/internal/core/domain"
	"github.com/berfenger/engymgr/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	topic   string
	payload string
}

func (m testMessage) Duplicate() bool   { return false }
func (m testMessage) Qos() byte         { return 1 }
func (m testMessage) Retained() bool    { return false }
func (m testMessage) Topic() string     { return m.topic }
func (m testMessage) MessageID() uint16 { return 1 }
func (m testMessage) Payload() []byte   { return []byte(m.payload) }
func (m testMessage) Ack()              {}

func testClient() *MQTTClient {
	cfg := util.LoadTestConfig()
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestButtonCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/button/energy_reset/press"
	r := buttonCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal("energy_reset", matches[0][1], "button extract")
}

func TestButtonCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/button/energy_reset/state"
	r := buttonCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(0, len(matches), "no matches")
}

func TestInputNumberCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/number/number_name/set"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal("number_name", matches[0][1], "number_id extract")
}

func TestInputNumberCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/button/number_name/press"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(0, len(matches), "no matches")
}

func TestTelemetryTopicParse(t *testing.T) {

	assert := assert.New(t)

	r := telemetryExtractor("loremTopic")
	matches := r.FindAllStringSubmatch("loremTopic/telemetry/power", 1)
	assert.Equal("power", matches[0][1], "category extract")

	matches = r.FindAllStringSubmatch("other/telemetry/power", 1)
	assert.Equal(0, len(matches), "no matches")
}

func TestParseMQTTCommand(t *testing.T) {
	client := testClient()

	cmd, err := client.ParseMQTTCommand(testMessage{topic: client.InputNumberCommandTopic(domain.INPUT_NUMBER_ID_CABLE_LIMIT), payload: "20"})
	require.NoError(t, err)
	assert.Equal(t, &ParsedMQTTCommand{DeviceId: domain.INPUT_NUMBER_ID_CABLE_LIMIT, Command: COMMAND_NUMBER, Payload: "20"}, cmd)

	cmd, err = client.ParseMQTTCommand(testMessage{topic: client.ButtonCommandTopic(domain.BUTTON_ID_ENERGY_RESET), payload: MQTT_PAYLOAD_PRESS})
	require.NoError(t, err)
	assert.Equal(t, COMMAND_BUTTON, cmd.Command)
	assert.Equal(t, domain.BUTTON_ID_ENERGY_RESET, cmd.DeviceId)

	cmd, err = client.ParseMQTTCommand(testMessage{topic: client.TelemetryTopic("current"), payload: "[10, 10, 0, 0]"})
	require.NoError(t, err)
	assert.Equal(t, COMMAND_TELEMETRY, cmd.Command)
	assert.Equal(t, "current", cmd.DeviceId)
	assert.Equal(t, "[10, 10, 0, 0]", cmd.Payload)
}

func TestParseMQTTCommandFail(t *testing.T) {
	client := testClient()

	_, err := client.ParseMQTTCommand(testMessage{topic: client.InputNumberCommandTopic(domain.INPUT_NUMBER_ID_CABLE_LIMIT), payload: "twenty"})
	assert.Error(t, err)

	_, err = client.ParseMQTTCommand(testMessage{topic: client.SensorStateTopic(domain.SENSOR_ID_POWER), payload: "1"})
	assert.Error(t, err)
}
