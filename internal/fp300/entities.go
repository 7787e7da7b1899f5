package fp300

import (
	"fmt"
	"math"

	"fp300-bridge/internal/zcl"
)

// EntityKind is the Home Assistant platform an entity is exposed on.
type EntityKind string

const (
	KindBinarySensor EntityKind = "binary_sensor"
	KindSensor       EntityKind = "sensor"
	KindButton       EntityKind = "button"
	KindSelect       EntityKind = "select"
	KindNumber       EntityKind = "number"
	KindSwitch       EntityKind = "switch"
)

// Entity describes one user-facing value backed by a single attribute.
type Entity struct {
	Kind      EntityKind
	Key       string // state key and discovery object id
	Name      string
	Endpoint  uint8
	ClusterID uint16
	AttrID    uint16

	DeviceClass       string
	StateClass        string
	Category          string // "", "config" or "diagnostic"
	Unit              string
	InitiallyDisabled bool

	// Multiplier converts the raw attribute value to the displayed one.
	// Zero means 1.
	Multiplier     float64
	Min, Max, Step float64

	Enum       *Enum
	PressValue any // value written by a button
}

func (e *Entity) multiplier() float64 {
	if e.Multiplier == 0 {
		return 1
	}
	return e.Multiplier
}

// Display converts a cached attribute value to its user-facing form.
func (e *Entity) Display(raw any) any {
	switch e.Kind {
	case KindBinarySensor, KindSwitch:
		on, ok := zcl.AsBool(raw)
		if !ok {
			return nil
		}
		return on
	case KindSelect:
		v, ok := zcl.AsUint64(raw)
		if !ok || v > math.MaxUint8 {
			return nil
		}
		if name, ok := e.Enum.Format(uint8(v)); ok {
			return name
		}
		return nil
	}
	f, ok := zcl.AsFloat64(raw)
	if !ok {
		return raw
	}
	if e.Multiplier == 0 {
		return raw
	}
	// Round off float noise from the multiplication.
	return math.Round(f*e.Multiplier*1e6) / 1e6
}

// Raw converts a user-supplied value to the attribute value to write.
// Switches take bools, selects take option names, numbers take displayed
// units and are range checked.
func (e *Entity) Raw(v any) (any, error) {
	switch e.Kind {
	case KindSwitch:
		on, ok := zcl.AsBool(v)
		if !ok {
			return nil, fmt.Errorf("%s: expected bool, got %T", e.Key, v)
		}
		return on, nil
	case KindSelect:
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected option name, got %T", e.Key, v)
		}
		return e.Enum.Parse(name)
	case KindNumber:
		f, ok := zcl.AsFloat64(v)
		if !ok {
			return nil, fmt.Errorf("%s: expected number, got %T", e.Key, v)
		}
		if f < e.Min || f > e.Max {
			return nil, fmt.Errorf("%s: %v out of range %v..%v", e.Key, f, e.Min, e.Max)
		}
		return uint64(math.Round(f / e.multiplier())), nil
	case KindButton:
		return e.PressValue, nil
	}
	return nil, fmt.Errorf("%s: %s is read-only", e.Key, e.Kind)
}

// Writable reports whether the entity accepts commands.
func (e *Entity) Writable() bool {
	switch e.Kind {
	case KindSwitch, KindSelect, KindNumber, KindButton:
		return true
	}
	return false
}

func manuEntity(kind EntityKind, key, name string, attrID uint16) Entity {
	return Entity{Kind: kind, Key: key, Name: name, Endpoint: 1, ClusterID: ManuClusterID, AttrID: attrID, Category: "config"}
}

func number(key, name string, attrID uint16, unit, class string, lo, hi, step, mult float64) Entity {
	e := manuEntity(KindNumber, key, name, attrID)
	e.Unit, e.DeviceClass = unit, class
	e.Min, e.Max, e.Step, e.Multiplier = lo, hi, step, mult
	return e
}

func selectEnum(key, name string, attrID uint16, enum *Enum) Entity {
	e := manuEntity(KindSelect, key, name, attrID)
	e.Enum = enum
	return e
}

func button(key, name string, attrID uint16) Entity {
	e := manuEntity(KindButton, key, name, attrID)
	e.PressValue = 1
	return e
}

var entities = buildEntities()

func buildEntities() []Entity {
	presence := manuEntity(KindBinarySensor, "presence", "Presence", AttrPresence)
	presence.DeviceClass, presence.Category = "occupancy", ""

	pir := manuEntity(KindBinarySensor, "pir_detection", "PIR detection", AttrPIRDetection)
	pir.DeviceClass, pir.Category, pir.InitiallyDisabled = "motion", "diagnostic", true

	distance := manuEntity(KindSensor, "target_distance", "Target distance", AttrTargetDistance)
	distance.DeviceClass, distance.StateClass, distance.Category = "distance", "measurement", "diagnostic"
	distance.Unit, distance.Multiplier = "m", 0.01

	list := []Entity{
		presence,
		pir,
		distance,
		button("track_target_distance", "Start target distance tracking", AttrTrackTargetDistance),
		selectEnum("motion_sensitivity", "Motion sensitivity", AttrMotionSensitivity, MotionSensitivity),
		selectEnum("presence_detection_options", "Presence detection options", AttrPresenceDetectionOptions, PresenceDetectionMode),
		number("absence_delay_timer", "Absence delay timer", AttrAbsenceDelayTimer, "s", "duration", 10, 300, 5, 0),
		number("pir_detection_interval", "PIR detection interval", AttrPIRDetectionInterval, "s", "duration", 2, 300, 1, 0),
		manuEntity(KindSwitch, "ai_interference_source_selfidentification", "AI interference source self-identification", AttrAIInterferenceSelfID),
		manuEntity(KindSwitch, "ai_sensitivity_adaptive", "AI adaptive sensitivity", AttrAISensitivityAdaptive),
		selectEnum("temp_humidity_sampling", "Temp & humidity sampling", AttrTempHumiditySampling, Sampling),
		number("temp_humidity_sampling_period", "Temp & humidity sampling period", AttrTempHumiditySamplingPeriod, "s", "duration", 0.5, 3600, 0.5, 0.001),
		number("temp_reporting_interval", "Temperature reporting interval", AttrTempReportingInterval, "s", "duration", 600, 3600, 600, 0.001),
		number("temp_reporting_threshold", "Temperature reporting threshold", AttrTempReportingThreshold, "°C", "temperature", 0.2, 3, 0.1, 0.01),
		selectEnum("temp_reporting_mode", "Temperature reporting mode", AttrTempReportingMode, ReportMode),
		number("humidity_reporting_interval", "Humidity reporting interval", AttrHumidityReportingInterval, "s", "duration", 600, 3600, 600, 0.001),
		number("humidity_reporting_threshold", "Humidity reporting threshold", AttrHumidityReportingThreshold, "%", "humidity", 2, 20, 0.5, 0.01),
		selectEnum("humidity_reporting_mode", "Humidity reporting mode", AttrHumidityReportingMode, ReportMode),
		selectEnum("light_sampling", "Light sampling", AttrLightSampling, Sampling),
		number("light_sampling_period", "Light sampling period", AttrLightSamplingPeriod, "s", "duration", 0.5, 3600, 0.5, 0.001),
		number("light_reporting_interval", "Light reporting interval", AttrLightReportingInterval, "s", "duration", 20, 3600, 20, 0.001),
		number("light_reporting_threshold", "Light reporting threshold", AttrLightReportingThreshold, "%", "", 3, 20, 0.5, 0.01),
		selectEnum("light_reporting_mode", "Light reporting mode", AttrLightReportingMode, ReportMode),
		button("spatial_learning", "Start spatial learning", AttrSpatialLearning),
		button("restart_device", "Restart device", AttrRestartDevice),
	}

	for _, b := range Bands {
		// range_2_3m -> detection_range_2_3m, "Detection range 2-3 m"
		lo, hi := b.Name[6], b.Name[8]
		list = append(list, Entity{
			Kind:      KindSwitch,
			Key:       "detection_range_" + b.Name[len("range_"):],
			Name:      fmt.Sprintf("Detection range %c-%c m", lo, hi),
			Endpoint:  1,
			ClusterID: DetectionRangeClusterID,
			AttrID:    b.AttrID,
			Category:  "config",
		})
	}
	return list
}

// Entities returns a copy of the FP300 entity list.
func Entities() []Entity {
	out := make([]Entity, len(entities))
	copy(out, entities)
	return out
}

// FindEntity looks up an entity by key.
func FindEntity(key string) (Entity, bool) {
	for _, e := range entities {
		if e.Key == key {
			return e, true
		}
	}
	return Entity{}, false
}

// EntityFor returns the entity backed by an attribute.
func EntityFor(clusterID, attrID uint16) (Entity, bool) {
	for _, e := range entities {
		if e.ClusterID == clusterID && e.AttrID == attrID {
			return e, true
		}
	}
	return Entity{}, false
}

// IsFP300 reports whether a Basic model identifier belongs to an FP300.
func IsFP300(model string) bool {
	return model == Model
}
