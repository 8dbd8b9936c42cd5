package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		EnergyConfig: EnergyConfig{
			CableMaxAmps:    32,
			BackendMaxKW:    22,
			VoltageMaxVolts: 253,
		},
		MonitorConfig: MonitorConfig{
			PollIntervalMillis:  5000,
			StateIntervalMillis: 60000,
			VariationPercent:    100,
		},
	}
}

func TestCheckMQTTTopic(t *testing.T) {
	topic, err := CheckMQTTTopic("EngyMgr_01")
	assert.NoError(t, err)
	assert.Equal(t, "engymgr_01", topic)

	_, err = CheckMQTTTopic("engy/mgr")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.EnergyConfig.CableMaxAmps = 0
	assert.ErrorContains(t, cfg.Validate(), "cable_max_amps")

	cfg = validConfig()
	cfg.MonitorConfig.PollIntervalMillis = 200
	assert.ErrorContains(t, cfg.Validate(), "poll_interval_millis")

	cfg = validConfig()
	cfg.MonitorConfig.VariationPercent = 120
	assert.ErrorContains(t, cfg.Validate(), "variation_percent")

	cfg = validConfig()
	cfg.EnergyConfig.SubscriptionMaxWatts = -1
	assert.Error(t, cfg.Validate())
}
