package fp300

// Attribute keys produced by ParseAqaraAttributes.
const (
	BatteryVoltageMV           = "battery_voltage_mv"
	BatteryPercentageRemaining = "battery_percentage_remaining"
	Temperature                = "temperature"
	PowerOutageCount           = "power_outage_count"
)

// The FP300 reports battery data under tags that the generic Aqara parser
// does not know, so they come out as raw keys.
var remapTable = []struct{ from, to string }{
	{"0xff01-23", BatteryVoltageMV},
	{"0xff01-24", BatteryPercentageRemaining},
}

// RemapAttributes renames the FP300 battery keys in place and returns attrs.
// The source key is removed. Absent keys are left alone, so applying it twice
// is the same as applying it once.
func RemapAttributes(attrs map[string]any) map[string]any {
	for _, r := range remapTable {
		if v, ok := attrs[r.from]; ok {
			attrs[r.to] = v
			delete(attrs, r.from)
		}
	}
	return attrs
}
