package clusters

import "fp300-bridge/internal/zcl"

// Basic ID constants used outside the definition.
const (
	BasicID           uint16 = 0x0000
	BasicManufacturer uint16 = 0x0004
	BasicModel        uint16 = 0x0005
	BasicXiaomiStruct uint16 = 0xFF01
)

var Basic = zcl.ClusterDef{
	ID:   BasicID,
	Name: "basic",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "zcl_version", Type: zcl.TypeUint8, Access: zcl.AccessRead},
		{ID: 0x0001, Name: "app_version", Type: zcl.TypeUint8, Access: zcl.AccessRead},
		{ID: 0x0002, Name: "stack_version", Type: zcl.TypeUint8, Access: zcl.AccessRead},
		{ID: 0x0003, Name: "hw_version", Type: zcl.TypeUint8, Access: zcl.AccessRead},
		{ID: BasicManufacturer, Name: "manufacturer", Type: zcl.TypeCharStr, Access: zcl.AccessRead},
		{ID: BasicModel, Name: "model", Type: zcl.TypeCharStr, Access: zcl.AccessRead},
		{ID: 0x0006, Name: "date_code", Type: zcl.TypeCharStr, Access: zcl.AccessRead},
		{ID: 0x0007, Name: "power_source", Type: zcl.TypeEnum8, Access: zcl.AccessRead},
		{ID: 0x4000, Name: "sw_build_id", Type: zcl.TypeCharStr, Access: zcl.AccessRead},
		// Xiaomi/Aqara heartbeat struct, sent as a char string holding TLV bytes.
		{ID: BasicXiaomiStruct, Name: "xiaomi_struct", Type: zcl.TypeCharStr, Access: zcl.AccessRead | zcl.AccessReport, ManufacturerSpecific: true},
	},
}
