package fp300

import "fp300-bridge/internal/zcl"

// Device identity as reported in the Basic cluster.
const (
	Manufacturer = "Aqara"
	Model        = "lumi.sensor_occupy.agl8"
	FriendlyName = "Presence Sensor FP300"
)

const (
	ManufacturerCode uint16 = 0x115F

	ManuClusterID           uint16 = 0xFCC0
	DetectionRangeClusterID uint16 = 0xFC30
)

// Manufacturer cluster attributes.
const (
	AttrRestartDevice              uint16 = 0x00E8
	AttrAqaraAttributes            uint16 = 0x00F7
	AttrMotionSensitivity          uint16 = 0x010C
	AttrPresence                   uint16 = 0x0142
	AttrPIRDetection               uint16 = 0x014D
	AttrPIRDetectionInterval       uint16 = 0x014F
	AttrSpatialLearning            uint16 = 0x0157
	AttrAISensitivityAdaptive      uint16 = 0x015D
	AttrAIInterferenceSelfID       uint16 = 0x015E
	AttrTargetDistance             uint16 = 0x015F
	AttrTempHumiditySamplingPeriod uint16 = 0x0162
	AttrTempReportingInterval      uint16 = 0x0163
	AttrTempReportingThreshold     uint16 = 0x0164
	AttrTempReportingMode          uint16 = 0x0165
	AttrHumidityReportingInterval  uint16 = 0x016A
	AttrHumidityReportingThreshold uint16 = 0x016B
	AttrHumidityReportingMode      uint16 = 0x016C
	AttrTempHumiditySampling       uint16 = 0x0170
	AttrLightSampling              uint16 = 0x0192
	AttrLightSamplingPeriod        uint16 = 0x0193
	AttrLightReportingInterval     uint16 = 0x0194
	AttrLightReportingThreshold    uint16 = 0x0195
	AttrLightReportingMode         uint16 = 0x0196
	AttrAbsenceDelayTimer          uint16 = 0x0197
	AttrTrackTargetDistance        uint16 = 0x0198
	AttrPresenceDetectionOptions   uint16 = 0x0199
	AttrDetectionRangeRaw          uint16 = 0x019A
)

// Detection range cluster attributes. Band attributes follow at
// 0x0001..0x0006, see Bands.
const AttrPrefix uint16 = 0x0000

const (
	rp  = zcl.AccessRead | zcl.AccessReport
	rwp = zcl.AccessRead | zcl.AccessWrite | zcl.AccessReport
	wo  = zcl.AccessWrite
)

func manu(id uint16, name string, typ uint8, access uint8) zcl.AttributeDef {
	return zcl.AttributeDef{ID: id, Name: name, Type: typ, Access: access, ManufacturerSpecific: true}
}

// ManuCluster is the Aqara manufacturer cluster as the FP300 implements it.
var ManuCluster = zcl.ClusterDef{
	ID:               ManuClusterID,
	Name:             "aqara_fp300",
	ManufacturerCode: ManufacturerCode,
	Attributes: []zcl.AttributeDef{
		manu(AttrRestartDevice, "restart_device", zcl.TypeBool, wo),
		manu(AttrAqaraAttributes, "aqara_attributes", zcl.TypeOctetStr, rp),
		manu(AttrMotionSensitivity, "motion_sensitivity", zcl.TypeUint8, rwp),
		manu(AttrPresence, "presence", zcl.TypeUint8, rp),
		manu(AttrPIRDetection, "pir_detection", zcl.TypeUint8, rp),
		manu(AttrPIRDetectionInterval, "pir_detection_interval", zcl.TypeUint16, rwp),
		manu(AttrSpatialLearning, "spatial_learning", zcl.TypeUint8, wo),
		manu(AttrAISensitivityAdaptive, "ai_sensitivity_adaptive", zcl.TypeUint8, rwp),
		manu(AttrAIInterferenceSelfID, "ai_interference_source_selfidentification", zcl.TypeUint8, rwp),
		manu(AttrTargetDistance, "target_distance", zcl.TypeUint32, rp),
		manu(AttrTempHumiditySamplingPeriod, "temp_humidity_sampling_period", zcl.TypeUint32, rwp),
		manu(AttrTempReportingInterval, "temp_reporting_interval", zcl.TypeUint32, rwp),
		manu(AttrTempReportingThreshold, "temp_reporting_threshold", zcl.TypeUint16, rwp),
		manu(AttrTempReportingMode, "temp_reporting_mode", zcl.TypeUint8, rwp),
		manu(AttrHumidityReportingInterval, "humidity_reporting_interval", zcl.TypeUint32, rwp),
		manu(AttrHumidityReportingThreshold, "humidity_reporting_threshold", zcl.TypeUint16, rwp),
		manu(AttrHumidityReportingMode, "humidity_reporting_mode", zcl.TypeUint8, rwp),
		manu(AttrTempHumiditySampling, "temp_humidity_sampling", zcl.TypeUint8, rwp),
		manu(AttrLightSampling, "light_sampling", zcl.TypeUint8, rwp),
		manu(AttrLightSamplingPeriod, "light_sampling_period", zcl.TypeUint32, rwp),
		manu(AttrLightReportingInterval, "light_reporting_interval", zcl.TypeUint32, rwp),
		manu(AttrLightReportingThreshold, "light_reporting_threshold", zcl.TypeUint16, rwp),
		manu(AttrLightReportingMode, "light_reporting_mode", zcl.TypeUint8, rwp),
		manu(AttrAbsenceDelayTimer, "absence_delay_timer", zcl.TypeUint32, rwp),
		manu(AttrTrackTargetDistance, "track_target_distance", zcl.TypeUint8, wo),
		manu(AttrPresenceDetectionOptions, "presence_detection_options", zcl.TypeUint8, rwp),
		manu(AttrDetectionRangeRaw, "detection_range_raw", zcl.TypeOctetStr, rwp),
	},
}

// DetectionRangeCluster exists only in the bridge. Its attributes mirror the
// decoded detection_range_raw buffer, and writing them re-encodes the buffer.
var DetectionRangeCluster = func() zcl.ClusterDef {
	c := zcl.ClusterDef{
		ID:    DetectionRangeClusterID,
		Name:  "fp300_detection_range",
		Local: true,
		Attributes: []zcl.AttributeDef{
			{ID: AttrPrefix, Name: "prefix", Type: zcl.TypeUint16, Access: rwp},
		},
	}
	for _, b := range Bands {
		c.Attributes = append(c.Attributes, zcl.AttributeDef{ID: b.AttrID, Name: b.Name, Type: zcl.TypeBool, Access: rwp})
	}
	return c
}()
