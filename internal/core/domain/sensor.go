package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/berfenger/engymgr/pkg/sdm_modbus"
	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE        = "bridge"
	SENSOR_ID_CURRENT             = "current"
	SENSOR_ID_CURRENT_L1          = "current_l1"
	SENSOR_ID_CURRENT_L2          = "current_l2"
	SENSOR_ID_CURRENT_L3          = "current_l3"
	SENSOR_ID_VOLTAGE             = "voltage"
	SENSOR_ID_POWER               = "power"
	SENSOR_ID_SESSION_ENERGY      = "session_energy"
	SENSOR_ID_AVAILABLE_CURRENT   = "available_current"
	SENSOR_ID_OVER_LIMIT          = "over_limit"
	BUTTON_ID_ENERGY_RESET        = "energy_reset"
	INPUT_NUMBER_ID_CABLE_LIMIT   = "cable_limit"
	INPUT_NUMBER_ID_BACKEND_LIMIT = "backend_limit"
	STATE_CLASS_MEASUREMENT       = "measurement"
	STATE_CLASS_TOTAL_INCREASING  = "total_increasing"
	DEVICE_CLASS_CURRENT          = "current"
	DEVICE_CLASS_ENERGY           = "energy"
	DEVICE_CLASS_POWER            = "power"
	DEVICE_CLASS_VOLTAGE          = "voltage"
	DEVICE_CLASS_CONNECTIVITY     = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC       = "diagnostic"
	ENTITY_CLASS_CONFIG           = "config"
	SENSOR_TYPE_SENSOR            = "sensor"
	SENSOR_TYPE_BINARY            = "binary_sensor"
	INPUT_NUMBER_MODE_BOX         = "box"
	INPUT_NUMBER_MODE_SLIDER      = "slider"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("engymgr_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "engymgr",
		Model:        "Energy manager",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Energy manager %s", md5HashShort(baseTopic)),
	}
}

func MeterDevice(info *sdm_modbus.MeterInfo) Device {
	return Device{
		Id:           fmt.Sprintf("engymgr_meter_%s", md5HashShort(info.Serial)),
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		Name:         fmt.Sprintf("%s %s %s", info.Manufacturer, info.Model, md5HashShort(info.Serial)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

// ManagerSensors are the computed values owned by the energy manager.
func ManagerSensors(device Device) []GenericSensor {
	var sensors []GenericSensor

	// Available current
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_AVAILABLE_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Available current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		Icon:              "mdi:ev-station",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_AVAILABLE_CURRENT),
	})

	// Last over limit
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_OVER_LIMIT,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Last over limit",
		Icon:       "mdi:flash-alert",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_OVER_LIMIT),
	})

	return sensors
}

func MeterSensors(meterDevice Device) []GenericSensor {
	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:            meterDevice,
		Id:                SENSOR_ID_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		UniqueId:          uniqueId(meterDevice.Id, SENSOR_ID_CURRENT),
	})

	for i, id := range []string{SENSOR_ID_CURRENT_L1, SENSOR_ID_CURRENT_L2, SENSOR_ID_CURRENT_L3} {
		sensors = append(sensors, GenericSensor{
			Device:            meterDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              fmt.Sprintf("Current L%d", i+1),
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_CURRENT,
			UnitOfMeasurement: "A",
			EnabledByDefault:  optionalBool(i == 0),
			UniqueId:          uniqueId(meterDevice.Id, id),
		})
	}

	sensors = append(sensors, GenericSensor{
		Device:            meterDevice,
		Id:                SENSOR_ID_VOLTAGE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		UniqueId:          uniqueId(meterDevice.Id, SENSOR_ID_VOLTAGE),
	})

	sensors = append(sensors, GenericSensor{
		Device:            meterDevice,
		Id:                SENSOR_ID_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(meterDevice.Id, SENSOR_ID_POWER),
	})

	// Session energy restarts at every reset
	sensors = append(sensors, GenericSensor{
		Device:            meterDevice,
		Id:                SENSOR_ID_SESSION_ENERGY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Session energy",
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(meterDevice.Id, SENSOR_ID_SESSION_ENERGY),
	})

	return sensors
}

func EnergyControlButtons(device Device) []GenericButton {
	return []GenericButton{{
		Device:   device,
		Id:       BUTTON_ID_ENERGY_RESET,
		Name:     "Reset energy session",
		UniqueId: uniqueId(device.Id, BUTTON_ID_ENERGY_RESET),
		Icon:     "mdi:counter",
	}}
}

func EnergyControlInputNumbers(device Device, ceilings EnergyCeilings) []GenericInputNumber {
	var inputNumbers []GenericInputNumber

	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            device,
		Id:                INPUT_NUMBER_ID_CABLE_LIMIT,
		Name:              "Cable limit",
		UniqueId:          uniqueId(device.Id, INPUT_NUMBER_ID_CABLE_LIMIT),
		Icon:              "mdi:current-ac",
		UnitOfMeasurement: "A",
		Max:               float64(ceilings.CableAmps),
		Min:               1,
		Step:              1,
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      float64(ceilings.CableAmps),
	})

	inputNumbers = append(inputNumbers, GenericInputNumber{
		Device:            device,
		Id:                INPUT_NUMBER_ID_BACKEND_LIMIT,
		Name:              "Backend limit",
		UniqueId:          uniqueId(device.Id, INPUT_NUMBER_ID_BACKEND_LIMIT),
		Icon:              "mdi:transmission-tower",
		UnitOfMeasurement: "kW",
		Max:               float64(ceilings.BackendKW),
		Min:               1,
		Step:              1,
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      float64(ceilings.BackendKW),
	})

	return inputNumbers
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
