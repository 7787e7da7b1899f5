package clusters

import "fp300-bridge/internal/zcl"

const (
	PowerConfigurationID       uint16 = 0x0001
	BatteryVoltage             uint16 = 0x0020
	BatteryPercentageRemaining uint16 = 0x0021
)

var PowerConfiguration = zcl.ClusterDef{
	ID:   PowerConfigurationID,
	Name: "power",
	Attributes: []zcl.AttributeDef{
		{ID: BatteryVoltage, Name: "battery_voltage", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: BatteryPercentageRemaining, Name: "battery_percentage_remaining", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0031, Name: "battery_size", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0033, Name: "battery_quantity", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite},
		{ID: 0x0034, Name: "battery_rated_voltage", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessWrite},
	},
}

const (
	DeviceTemperatureID uint16 = 0x0002
	CurrentTemperature  uint16 = 0x0000
)

var DeviceTemperature = zcl.ClusterDef{
	ID:   DeviceTemperatureID,
	Name: "device_temperature",
	Attributes: []zcl.AttributeDef{
		{ID: CurrentTemperature, Name: "current_temperature", Type: zcl.TypeInt16, Access: zcl.AccessRead},
		{ID: 0x0001, Name: "min_temp_experienced", Type: zcl.TypeInt16, Access: zcl.AccessRead},
		{ID: 0x0002, Name: "max_temp_experienced", Type: zcl.TypeInt16, Access: zcl.AccessRead},
	},
}
