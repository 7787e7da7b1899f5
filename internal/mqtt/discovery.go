//go:build !no_homeassistant

package mqtt

import (
	"fmt"
	"math"
	"strings"

	"fp300-bridge/internal/fp300"
	"fp300-bridge/internal/store"
	"fp300-bridge/internal/zcl"
	"fp300-bridge/internal/zcl/clusters"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/switch/zigbee_54EF44.../detection_range_0_1m/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic,omitempty"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	CommandTemplate   string   `json:"command_template,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	EntityCategory    string   `json:"entity_category,omitempty"`
	EnabledByDefault  *bool    `json:"enabled_by_default,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	StateOn           string   `json:"state_on,omitempty"`
	StateOff          string   `json:"state_off,omitempty"`
	PayloadPress      string   `json:"payload_press,omitempty"`
	Options           []string `json:"options,omitempty"`
	Min               *float64 `json:"min,omitempty"`
	Max               *float64 `json:"max,omitempty"`
	Step              float64  `json:"step,omitempty"`
	Device            haDevice `json:"device"`
}

// stateProp maps a standard cluster attribute onto a state key.
type stateProp struct {
	ClusterID   uint16
	AttrID      uint16
	Key         string
	Name        string
	DeviceClass string
	Unit        string
	convert     func(any) (any, bool)
}

var standardProps = []stateProp{
	{clusters.PowerConfigurationID, clusters.BatteryPercentageRemaining, "battery", "Battery", "battery", "%", scaled(0.5)},
	{clusters.PowerConfigurationID, clusters.BatteryVoltage, "voltage", "Voltage", "voltage", "mV", scaled(100)},
	{clusters.DeviceTemperatureID, clusters.CurrentTemperature, "device_temperature", "Device temperature", "temperature", "°C", scaled(1)},
	{clusters.TemperatureMeasurementID, clusters.MeasuredValue, "temperature", "Temperature", "temperature", "°C", scaled(0.01)},
	{clusters.RelativeHumidityID, clusters.MeasuredValue, "humidity", "Humidity", "humidity", "%", scaled(0.01)},
	{clusters.IlluminanceMeasurementID, clusters.MeasuredValue, "illuminance", "Illuminance", "illuminance", "lx", lux},
	{clusters.OccupancySensingID, clusters.Occupancy, "occupancy", "Occupancy", "occupancy", "", occupied},
}

func scaled(m float64) func(any) (any, bool) {
	return func(v any) (any, bool) {
		f, ok := zcl.AsFloat64(v)
		if !ok {
			return nil, false
		}
		return math.Round(f*m*100) / 100, true
	}
}

// lux converts MeasuredValue = 10000*log10(lx)+1.
func lux(v any) (any, bool) {
	f, ok := zcl.AsFloat64(v)
	if !ok {
		return nil, false
	}
	if f <= 0 {
		return 0.0, true
	}
	return math.Round(math.Pow(10, (f-1)/10000)), true
}

func occupied(v any) (any, bool) {
	n, ok := zcl.AsUint64(v)
	if !ok {
		return nil, false
	}
	return n&1 != 0, true
}

func findStandardProp(clusterID, attrID uint16) (stateProp, bool) {
	for _, p := range standardProps {
		if p.ClusterID == clusterID && p.AttrID == attrID {
			return p, true
		}
	}
	return stateProp{}, false
}

// stateValue maps one cache update onto a state key and its published value.
// FP300 attributes go through the entity list, standard clusters through
// standardProps.
func stateValue(isFP300 bool, clusterID, attrID uint16, value any) (string, any, bool) {
	if isFP300 {
		if e, ok := fp300.EntityFor(clusterID, attrID); ok {
			if e.Kind == fp300.KindButton {
				return "", nil, false
			}
			v := e.Display(value)
			if v == nil {
				return "", nil, false
			}
			if e.Kind == fp300.KindSwitch {
				v = onOff(v.(bool))
			}
			return e.Key, v, true
		}
	}
	if p, ok := findStandardProp(clusterID, attrID); ok {
		v, ok := p.convert(value)
		return p.Key, v, ok
	}
	return "", nil, false
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// deviceIdentifier returns the unique identifier for HA device registry.
func deviceIdentifier(dev *store.Device) string {
	return "zigbee_" + dev.IEEEAddress
}

// deviceTopicName returns the topic name for a device (friendly name or IEEE).
func deviceTopicName(dev *store.Device) string {
	if dev.FriendlyName != "" {
		// Sanitize: lowercase and keep only safe chars for MQTT topics.
		name := strings.ToLower(dev.FriendlyName)
		name = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
				return r
			}
			return '_'
		}, name)
		return name
	}
	return dev.IEEEAddress
}

type discoveryTarget struct {
	prefix       string // discovery prefix
	nodeID       string
	displayName  string
	stateTopic   string
	commandTopic string
	avail        string
	device       haDevice
}

func newDiscoveryTarget(dev *store.Device, topicPrefix, discoveryPrefix string) discoveryTarget {
	nodeID := deviceIdentifier(dev)
	stateTopic := topicPrefix + "/" + deviceTopicName(dev)
	name := dev.DisplayName()
	if dev.FriendlyName == "" && fp300.IsFP300(dev.Model) {
		name = fp300.FriendlyName + " " + dev.IEEEAddress
	}
	return discoveryTarget{
		prefix:       discoveryPrefix,
		nodeID:       nodeID,
		displayName:  name,
		stateTopic:   stateTopic,
		commandTopic: stateTopic + "/set",
		avail:        topicPrefix + "/bridge/state",
		device: haDevice{
			Identifiers:  []string{nodeID},
			Manufacturer: dev.Manufacturer,
			Model:        dev.Model,
			Name:         name,
		},
	}
}

func (d discoveryTarget) topic(component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", d.prefix, component, d.nodeID, objectID)
}

func (d discoveryTarget) base(key, name string) haDiscovery {
	return haDiscovery{
		Name:              d.displayName + " " + name,
		UniqueID:          d.nodeID + "_" + key,
		StateTopic:        d.stateTopic,
		AvailabilityTopic: d.avail,
		Device:            d.device,
	}
}

// buildDiscovery generates HA discovery messages for an FP300. Other models
// get no discovery; their standard attributes still reach the state topic.
func buildDiscovery(dev *store.Device, topicPrefix, discoveryPrefix string) []discoveryMsg {
	if !fp300.IsFP300(dev.Model) {
		return nil
	}
	d := newDiscoveryTarget(dev, topicPrefix, discoveryPrefix)

	var msgs []discoveryMsg
	for _, e := range fp300.Entities() {
		msgs = append(msgs, buildEntity(d, e))
	}
	for _, p := range standardProps {
		if p.ClusterID == clusters.OccupancySensingID {
			continue
		}
		msgs = append(msgs, buildSensor(d, p))
	}
	return msgs
}

func buildSensor(d discoveryTarget, p stateProp) discoveryMsg {
	payload := d.base(p.Key, p.Name)
	payload.ValueTemplate = "{{ value_json." + p.Key + " }}"
	payload.UnitOfMeasurement = p.Unit
	payload.DeviceClass = p.DeviceClass
	payload.StateClass = "measurement"
	if p.ClusterID != clusters.TemperatureMeasurementID && p.ClusterID != clusters.RelativeHumidityID &&
		p.ClusterID != clusters.IlluminanceMeasurementID {
		payload.EntityCategory = "diagnostic"
	}
	return discoveryMsg{Topic: d.topic("sensor", p.Key), Payload: mustJSON(payload)}
}

func buildEntity(d discoveryTarget, e fp300.Entity) discoveryMsg {
	payload := d.base(e.Key, e.Name)
	payload.DeviceClass = e.DeviceClass
	payload.StateClass = e.StateClass
	payload.EntityCategory = e.Category
	payload.UnitOfMeasurement = e.Unit
	if e.InitiallyDisabled {
		off := false
		payload.EnabledByDefault = &off
	}
	valueTmpl := "{{ value_json." + e.Key + " }}"

	switch e.Kind {
	case fp300.KindBinarySensor:
		payload.ValueTemplate = "{{ 'ON' if value_json." + e.Key + " else 'OFF' }}"
		payload.PayloadOn = "ON"
		payload.PayloadOff = "OFF"
	case fp300.KindSensor:
		payload.ValueTemplate = valueTmpl
	case fp300.KindSwitch:
		payload.ValueTemplate = valueTmpl
		payload.CommandTopic = d.commandTopic
		payload.PayloadOn = `{"` + e.Key + `":"ON"}`
		payload.PayloadOff = `{"` + e.Key + `":"OFF"}`
		payload.StateOn = "ON"
		payload.StateOff = "OFF"
	case fp300.KindSelect:
		payload.ValueTemplate = valueTmpl
		payload.CommandTopic = d.commandTopic
		payload.CommandTemplate = `{"` + e.Key + `":"{{ value }}"}`
		payload.Options = e.Enum.Names()
	case fp300.KindNumber:
		payload.ValueTemplate = valueTmpl
		payload.CommandTopic = d.commandTopic
		payload.CommandTemplate = `{"` + e.Key + `":{{ value }}}`
		lo, hi := e.Min, e.Max
		payload.Min, payload.Max, payload.Step = &lo, &hi, e.Step
	case fp300.KindButton:
		payload.StateTopic = ""
		payload.CommandTopic = d.commandTopic
		payload.PayloadPress = `{"` + e.Key + `":""}`
	}
	return discoveryMsg{Topic: d.topic(string(e.Kind), e.Key), Payload: mustJSON(payload)}
}

// buildRemoveDiscovery generates empty retained messages to remove a device from HA.
func buildRemoveDiscovery(dev *store.Device, discoveryPrefix string) []discoveryMsg {
	d := discoveryTarget{prefix: discoveryPrefix, nodeID: deviceIdentifier(dev)}

	var msgs []discoveryMsg
	for _, e := range fp300.Entities() {
		msgs = append(msgs, discoveryMsg{Topic: d.topic(string(e.Kind), e.Key)})
	}
	for _, p := range standardProps {
		msgs = append(msgs, discoveryMsg{Topic: d.topic("sensor", p.Key)})
	}
	return msgs
}
