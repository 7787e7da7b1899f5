package fp300

import (
	"fmt"
	"log/slog"
	"math"

	"fp300-bridge/internal/zcl"
	"fp300-bridge/internal/zcl/clusters"
)

// Quirk adapts FP300 attribute traffic to the bridge's cache model.
type Quirk struct {
	logger *slog.Logger
}

// NewQuirk creates the FP300 quirk.
func NewQuirk(logger *slog.Logger) *Quirk {
	return &Quirk{logger: logger.With("component", "fp300")}
}

func (q *Quirk) Manufacturer() string { return Manufacturer }
func (q *Quirk) Model() string        { return Model }

// Clusters returns the cluster definitions the quirk adds to the registry.
func (q *Quirk) Clusters() []zcl.ClusterDef {
	return []zcl.ClusterDef{ManuCluster, DetectionRangeCluster}
}

// TranslateReport turns one received attribute into ordered cache updates.
//
// detection_range_raw is cached as received and followed by the decoded
// prefix and six bands. The Aqara attribute struct is cached as received and
// followed by the battery and device temperature values it carries.
// Everything else is cached unchanged.
func (q *Quirk) TranslateReport(clusterID, attrID uint16, value any) []zcl.AttributeUpdate {
	out := []zcl.AttributeUpdate{{ClusterID: clusterID, AttrID: attrID, Value: value}}

	switch {
	case clusterID == ManuClusterID && attrID == AttrDetectionRangeRaw:
		raw, _ := asBytes(value)
		out = append(out, Decode(raw).Updates()...)

	case clusterID == ManuClusterID && attrID == AttrAqaraAttributes,
		clusterID == clusters.BasicID && attrID == clusters.BasicXiaomiStruct:
		raw, ok := asBytes(value)
		if !ok {
			q.logger.Warn("aqara attributes: unexpected value type", "type", fmt.Sprintf("%T", value))
			return out
		}
		attrs, err := ParseAqaraAttributes(raw)
		if err != nil {
			q.logger.Warn("aqara attributes: decode failed", "err", err, "decoded", len(attrs))
		}
		out = append(out, aqaraUpdates(attrs)...)
	}
	return out
}

// aqaraUpdates maps parsed struct entries onto standard clusters.
func aqaraUpdates(attrs map[string]any) []zcl.AttributeUpdate {
	var out []zcl.AttributeUpdate
	if v, ok := zcl.AsFloat64(attrs[BatteryVoltageMV]); ok {
		// BatteryVoltage is in units of 100 mV.
		out = append(out, zcl.AttributeUpdate{
			ClusterID: clusters.PowerConfigurationID,
			AttrID:    clusters.BatteryVoltage,
			Value:     uint8(clamp(math.Round(v/100), 0, 255)),
		})
	}
	if v, ok := zcl.AsFloat64(attrs[BatteryPercentageRemaining]); ok {
		// BatteryPercentageRemaining is in half percent.
		out = append(out, zcl.AttributeUpdate{
			ClusterID: clusters.PowerConfigurationID,
			AttrID:    clusters.BatteryPercentageRemaining,
			Value:     uint8(clamp(v*2, 0, 200)),
		})
	}
	if v, ok := zcl.AsInt64(attrs[Temperature]); ok {
		out = append(out, zcl.AttributeUpdate{
			ClusterID: clusters.DeviceTemperatureID,
			AttrID:    clusters.CurrentTemperature,
			Value:     int16(v),
		})
	}
	return out
}

// TranslateWrite splits a write into updates applied to the local cache and
// updates sent to the device. current holds the cached attributes of the
// target cluster before the write.
//
// A write to the detection range cluster is applied locally and then sent as
// a single detection_range_raw write built from the full resulting state,
// since the device only accepts the whole buffer.
func (q *Quirk) TranslateWrite(clusterID uint16, values []zcl.AttributeUpdate, current map[uint16]any) (local, remote []zcl.AttributeUpdate) {
	if clusterID != DetectionRangeClusterID {
		return nil, values
	}

	state := make(map[uint16]any, len(current)+len(values))
	for id, v := range current {
		state[id] = v
	}
	for _, v := range values {
		state[v.AttrID] = v.Value
	}

	raw := EncodeAttributes(state)
	q.logger.Debug("detection range write", "raw", fmt.Sprintf("%X", raw))
	return values, []zcl.AttributeUpdate{{ClusterID: ManuClusterID, AttrID: AttrDetectionRangeRaw, Value: raw}}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
