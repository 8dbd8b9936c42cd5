package util

import (
	"github.com/berfenger/engymgr/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MeterModbusTcp: config.MeterModbusTCPConfig{
			Enable:        true,
			Host:          "-.-.-.-",
			Port:          502,
			UnitId:        1,
			TimeoutMillis: 1000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "engymgr",
		},
		EnergyConfig: config.EnergyConfig{
			CableMaxAmps:         32,
			BackendMaxKW:         22,
			VoltageMaxVolts:      253,
			SubscriptionMaxWatts: 9000,
			LineVoltage:          230,
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis:  1000,
			StateIntervalMillis: 60000,
			VariationPercent:    100,
		},
		Port: 8080,
	}
}
