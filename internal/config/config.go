package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel       zapcore.Level
	MeterModbusTcp MeterModbusTCPConfig `mapstructure:"meter_modbus_tcp"`
	MQTT           MQTTConfig           `mapstructure:"mqtt"`
	EnergyConfig   EnergyConfig         `mapstructure:"energy"`
	MonitorConfig  MonitorConfig        `mapstructure:"monitor"`
	JournalConfig  JournalConfig        `mapstructure:"journal"`
	Port           uint                 `mapstructure:"port"`
	HttpLog        bool                 `mapstructure:"http_log"`
	MetricsEnable  bool                 `mapstructure:"metrics_enable"`
}

type MeterModbusTCPConfig struct {
	Enable        bool
	Host          string
	Port          uint
	UnitId        uint   `mapstructure:"unit_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

// EnergyConfig holds the hardware ceilings and the contractual subscription.
type EnergyConfig struct {
	CableMaxAmps         int32 `mapstructure:"cable_max_amps"`
	BackendMaxKW         int32 `mapstructure:"backend_max_kw"`
	VoltageMaxVolts      int32 `mapstructure:"voltage_max_volts"`
	SubscriptionMaxWatts int32 `mapstructure:"subscription_max_watts"`
	LineVoltage          int32 `mapstructure:"line_voltage"`
}

type MonitorConfig struct {
	PollIntervalMillis  uint32 `mapstructure:"poll_interval_millis"`
	StateIntervalMillis uint32 `mapstructure:"state_interval_millis"`
	VariationPercent    int32  `mapstructure:"variation_percent"`
	MQTTTelemetryEnable bool   `mapstructure:"mqtt_telemetry_enable"`
}

type JournalConfig struct {
	Path                string
	IncludeMeterUpdates bool `mapstructure:"include_meter_updates"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Validate checks bounds that viper cannot express.
func (cfg *Config) Validate() error {
	if cfg.EnergyConfig.CableMaxAmps <= 0 {
		return errors.New("config param energy.cable_max_amps should be > 0")
	}
	if cfg.EnergyConfig.BackendMaxKW <= 0 {
		return errors.New("config param energy.backend_max_kw should be > 0")
	}
	if cfg.EnergyConfig.VoltageMaxVolts <= 0 {
		return errors.New("config param energy.voltage_max_volts should be > 0")
	}
	if cfg.EnergyConfig.SubscriptionMaxWatts < 0 || cfg.EnergyConfig.LineVoltage < 0 {
		return errors.New("config params energy.subscription_max_watts and energy.line_voltage should be >= 0")
	}
	if cfg.MonitorConfig.PollIntervalMillis < 1000 {
		return errors.New("config param monitor.poll_interval_millis should be >= 1000")
	}
	if cfg.MonitorConfig.StateIntervalMillis < 1000 {
		return errors.New("config param monitor.state_interval_millis should be >= 1000")
	}
	if cfg.MonitorConfig.VariationPercent < 0 || cfg.MonitorConfig.VariationPercent > 100 {
		return errors.New("config param monitor.variation_percent should be in [0, 100]")
	}
	return nil
}
