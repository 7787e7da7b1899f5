package clusters

import "fp300-bridge/internal/zcl"

const (
	IlluminanceMeasurementID uint16 = 0x0400
	TemperatureMeasurementID uint16 = 0x0402
	RelativeHumidityID       uint16 = 0x0405
	OccupancySensingID       uint16 = 0x0406

	MeasuredValue uint16 = 0x0000
	Occupancy     uint16 = 0x0000
)

var IlluminanceMeasurement = zcl.ClusterDef{
	ID:   IlluminanceMeasurementID,
	Name: "illuminance",
	Attributes: []zcl.AttributeDef{
		{ID: MeasuredValue, Name: "measured_value", Type: zcl.TypeUint16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0001, Name: "min_measured_value", Type: zcl.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x0002, Name: "max_measured_value", Type: zcl.TypeUint16, Access: zcl.AccessRead},
	},
}

// TemperatureMeasurement reports in 0.01 °C.
var TemperatureMeasurement = zcl.ClusterDef{
	ID:   TemperatureMeasurementID,
	Name: "temperature",
	Attributes: []zcl.AttributeDef{
		{ID: MeasuredValue, Name: "measured_value", Type: zcl.TypeInt16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0001, Name: "min_measured_value", Type: zcl.TypeInt16, Access: zcl.AccessRead},
		{ID: 0x0002, Name: "max_measured_value", Type: zcl.TypeInt16, Access: zcl.AccessRead},
	},
}

// RelativeHumidity reports in 0.01 %.
var RelativeHumidity = zcl.ClusterDef{
	ID:   RelativeHumidityID,
	Name: "humidity",
	Attributes: []zcl.AttributeDef{
		{ID: MeasuredValue, Name: "measured_value", Type: zcl.TypeUint16, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0001, Name: "min_measured_value", Type: zcl.TypeUint16, Access: zcl.AccessRead},
		{ID: 0x0002, Name: "max_measured_value", Type: zcl.TypeUint16, Access: zcl.AccessRead},
	},
}

var OccupancySensing = zcl.ClusterDef{
	ID:   OccupancySensingID,
	Name: "occupancy",
	Attributes: []zcl.AttributeDef{
		{ID: Occupancy, Name: "occupancy", Type: zcl.TypeBitmap8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: 0x0001, Name: "occupancy_sensor_type", Type: zcl.TypeEnum8, Access: zcl.AccessRead},
	},
}

// Standard lists every standard cluster the bridge understands.
func Standard() []zcl.ClusterDef {
	return []zcl.ClusterDef{
		Basic,
		PowerConfiguration,
		DeviceTemperature,
		IlluminanceMeasurement,
		TemperatureMeasurement,
		RelativeHumidity,
		OccupancySensing,
	}
}
