package events

import (
	"fmt"

	. "github.com/berfenger/engymgr/internal/core/domain"
)

// EnergyEventToUpdateEvents projects an energy event onto the sensor
// updates published over MQTT.
func EnergyEventToUpdateEvents(ev EnergyEvent) []SensorUpdateEvent {
	switch e := ev.(type) {
	case OverLimit:
		return []SensorUpdateEvent{TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SENSOR_ID_OVER_LIMIT},
			Value:                  fmt.Sprintf("%s > %d", e.Category, e.Limit),
		}}
	case AvailableCurrentChanged:
		return []SensorUpdateEvent{FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SENSOR_ID_AVAILABLE_CURRENT},
			Value:                  float64(e.Amps),
			Decimals:               0,
		}}
	case MeterUpdated:
		return MeterDataSetToUpdateEvents(e.Data)
	case StateSnapshot:
		return EnergyConfigToUpdateEvents(e.Config)
	}
	return nil
}

func MeterDataSetToUpdateEvents(data MeterDataSet) []SensorUpdateEvent {
	var events []SensorUpdateEvent
	readings := data.Readings()

	switch data.Category {
	case MeterCategoryCurrent:
		events = append(events, floatUpdate(SENSOR_ID_CURRENT, readings.Total, 2))
		events = append(events, floatUpdate(SENSOR_ID_CURRENT_L1, readings.L1, 2))
		events = append(events, floatUpdate(SENSOR_ID_CURRENT_L2, readings.L2, 2))
		events = append(events, floatUpdate(SENSOR_ID_CURRENT_L3, readings.L3, 2))
	case MeterCategoryVoltage:
		events = append(events, floatUpdate(SENSOR_ID_VOLTAGE, readings.Total, 1))
	case MeterCategoryPower:
		events = append(events, floatUpdate(SENSOR_ID_POWER, readings.Total, 0))
	case MeterCategoryEnergy:
		events = append(events, floatUpdate(SENSOR_ID_SESSION_ENERGY, readings.Total, 2))
	}

	return events
}

func EnergyConfigToUpdateEvents(cfg EnergyConfig) []SensorUpdateEvent {
	return []SensorUpdateEvent{
		InputNumberSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: INPUT_NUMBER_ID_CABLE_LIMIT},
			Value:                  float64(cfg.CableLimit),
		},
		InputNumberSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: INPUT_NUMBER_ID_BACKEND_LIMIT},
			Value:                  float64(cfg.BackendLimit),
		},
	}
}

func floatUpdate(id string, value float64, decimals uint) FloatSensorUpdateEvent {
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id},
		Value:                  value,
		Decimals:               decimals,
	}
}
