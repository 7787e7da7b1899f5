//go:build !no_homeassistant

package mqtt

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"fp300-bridge/internal/coordinator"
	"fp300-bridge/internal/fp300"
	"fp300-bridge/internal/store"
	"fp300-bridge/internal/zcl"
	"fp300-bridge/internal/zcl/clusters"
)

const testIEEE = "54EF441000A1B2C3"

type bridgeHarness struct {
	paho   *fakePaho
	coord  *coordinator.Coordinator
	bridge *Bridge
}

func newBridgeHarness(t *testing.T) *bridgeHarness {
	t.Helper()
	logger := newTestLogger()

	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	registry := zcl.NewRegistry(logger)
	for _, c := range clusters.Standard() {
		registry.Register(c)
	}
	quirks := coordinator.NewQuirkDB()
	quirks.Add(fp300.NewQuirk(logger))
	quirks.RegisterClusters(registry)

	p := newFakePaho()
	client := newClientWith(p, logger)
	tr := NewTransport(client, "zigbee/raw", logger)
	coord := coordinator.New(tr, st, registry, quirks, coordinator.NewEventBus(logger), logger)

	err = coord.SeedDevice(store.Device{
		IEEEAddress:  testIEEE,
		Manufacturer: fp300.Manufacturer,
		Model:        fp300.Model,
		Endpoints:    []uint8{1},
	})
	if err != nil {
		t.Fatal(err)
	}

	b := NewBridge(client, coord, Config{TopicPrefix: "zigbee2mqtt", DiscoveryPrefix: "homeassistant"}, logger)
	b.Start()
	t.Cleanup(b.Stop)
	client.runHooks()

	return &bridgeHarness{paho: p, coord: coord, bridge: b}
}

func (h *bridgeHarness) state(t *testing.T, topic string) map[string]any {
	t.Helper()
	msg, ok := h.paho.last(topic)
	if !ok {
		t.Fatalf("nothing published on %s", topic)
	}
	var state map[string]any
	if err := json.Unmarshal(msg.payload, &state); err != nil {
		t.Fatal(err)
	}
	return state
}

func (h *bridgeHarness) writes(t *testing.T) []writeMsg {
	t.Helper()
	var out []writeMsg
	for _, m := range h.paho.messages() {
		if m.topic != "zigbee/raw/"+testIEEE+"/1/write" {
			continue
		}
		var w writeMsg
		if err := json.Unmarshal(m.payload, &w); err != nil {
			t.Fatal(err)
		}
		out = append(out, w)
	}
	return out
}

func TestBridgeConnect(t *testing.T) {
	h := newBridgeHarness(t)

	msg, ok := h.paho.last("zigbee2mqtt/bridge/state")
	if !ok || string(msg.payload) != "online" || !msg.retained {
		t.Errorf("bridge state = %+v", msg)
	}
	if !h.paho.subscribed("zigbee2mqtt/" + testIEEE + "/set") {
		t.Error("command topic not subscribed")
	}
	if _, ok := h.paho.last("homeassistant/switch/zigbee_" + testIEEE + "/detection_range_2_3m/config"); !ok {
		t.Error("band switch discovery missing")
	}
	if _, ok := h.paho.last("homeassistant/sensor/zigbee_" + testIEEE + "/battery/config"); !ok {
		t.Error("battery discovery missing")
	}
}

func TestBridgeStateFromRawReport(t *testing.T) {
	h := newBridgeHarness(t)

	report := `{"cluster":64704,"attribute":410,"type":65,"data":"050003fff0ff"}`
	h.paho.inject("zigbee/raw/"+testIEEE+"/1/report", []byte(report))

	state := h.state(t, "zigbee2mqtt/"+testIEEE)
	if state["detection_range_2_3m"] != "OFF" {
		t.Errorf("detection_range_2_3m = %v, want OFF", state["detection_range_2_3m"])
	}
	for _, key := range []string{"detection_range_0_1m", "detection_range_1_2m", "detection_range_5_6m"} {
		if state[key] != "ON" {
			t.Errorf("%s = %v, want ON", key, state[key])
		}
	}
	if _, ok := state["last_seen"]; !ok {
		t.Error("last_seen missing")
	}
}

func TestBridgeCommand(t *testing.T) {
	h := newBridgeHarness(t)

	cmd := `{"detection_range_2_3m":"OFF","motion_sensitivity":"high"}`
	if n := h.paho.inject("zigbee2mqtt/"+testIEEE+"/set", []byte(cmd)); n != 1 {
		t.Fatalf("delivered to %d handlers", n)
	}

	writes := h.writes(t)
	if len(writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(writes))
	}
	dr := writes[0]
	if dr.Cluster != fp300.ManuClusterID || dr.ManufacturerCode != fp300.ManufacturerCode {
		t.Errorf("detection range write = %+v", dr)
	}
	if r := dr.Records[0]; r.Attribute != fp300.AttrDetectionRangeRaw || r.Data != "050003fff0ff" {
		t.Errorf("detection range record = %+v", r)
	}
	if r := writes[1].Records[0]; r.Attribute != fp300.AttrMotionSensitivity || r.Data != "03" {
		t.Errorf("motion sensitivity record = %+v", r)
	}

	state := h.state(t, "zigbee2mqtt/"+testIEEE)
	if state["motion_sensitivity"] != "high" || state["detection_range_2_3m"] != "OFF" {
		t.Errorf("state = %v", state)
	}
}

func TestBridgeCommandGroupsBands(t *testing.T) {
	h := newBridgeHarness(t)

	cmd := `{"detection_range_0_1m":"OFF","detection_range_1_2m":false}`
	h.paho.inject("zigbee2mqtt/"+testIEEE+"/set", []byte(cmd))

	writes := h.writes(t)
	if len(writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(writes))
	}
	if r := writes[0].Records[0]; r.Data != "05000300ffff" {
		t.Errorf("data = %s, want 05000300ffff", r.Data)
	}
}

func TestBridgeCommandToggle(t *testing.T) {
	h := newBridgeHarness(t)
	set := "zigbee2mqtt/" + testIEEE + "/set"

	h.paho.inject(set, []byte(`{"detection_range_4_5m":"TOGGLE"}`))
	h.paho.inject(set, []byte(`{"detection_range_4_5m":"TOGGLE"}`))

	writes := h.writes(t)
	if len(writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(writes))
	}
	// Unknown state toggles to on, then off.
	if d := writes[0].Records[0].Data; d != "050003ffffff" {
		t.Errorf("first toggle = %s", d)
	}
	if d := writes[1].Records[0].Data; d != "050003fffff0" {
		t.Errorf("second toggle = %s", d)
	}
}

func TestBridgeCommandErrors(t *testing.T) {
	h := newBridgeHarness(t)

	tests := []struct {
		name    string
		payload string
	}{
		{"bad json", `{`},
		{"read-only key", `{"presence":true}`},
		{"unknown key", `{"colour":"red"}`},
		{"out of range", `{"absence_delay_timer":5}`},
		{"unknown option", `{"motion_sensitivity":"extreme"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.bridge.handleCommand(testIEEE, []byte(tt.payload))
			if tt.name == "read-only key" || tt.name == "unknown key" {
				// Ignored keys are not an error.
				if err != nil {
					t.Errorf("err = %v", err)
				}
				return
			}
			if err == nil {
				t.Error("expected error")
			}
		})
	}
	if n := len(h.writes(t)); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
}

func TestBridgeRename(t *testing.T) {
	h := newBridgeHarness(t)

	if _, err := h.coord.RenameDevice(testIEEE, "Hallway Sensor"); err != nil {
		t.Fatal(err)
	}
	if !h.paho.subscribed("zigbee2mqtt/hallway_sensor/set") {
		t.Error("renamed command topic not subscribed")
	}
	if h.paho.subscribed("zigbee2mqtt/" + testIEEE + "/set") {
		t.Error("old command topic still subscribed")
	}

	msg, ok := h.paho.last("homeassistant/sensor/zigbee_" + testIEEE + "/target_distance/config")
	if !ok {
		t.Fatal("discovery not republished")
	}
	var payload haDiscovery
	if err := json.Unmarshal(msg.payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.StateTopic != "zigbee2mqtt/hallway_sensor" || payload.Device.Name != "Hallway Sensor" {
		t.Errorf("discovery = %+v", payload)
	}
}

func TestBridgeRemove(t *testing.T) {
	h := newBridgeHarness(t)

	if err := h.coord.RemoveDevice(testIEEE); err != nil {
		t.Fatal(err)
	}
	msg, ok := h.paho.last("homeassistant/switch/zigbee_" + testIEEE + "/detection_range_0_1m/config")
	if !ok || len(msg.payload) != 0 || !msg.retained {
		t.Errorf("discovery removal = %+v", msg)
	}
	if h.paho.subscribed("zigbee2mqtt/" + testIEEE + "/set") {
		t.Error("command topic still subscribed")
	}
}

func TestDiscoveryPayloads(t *testing.T) {
	dev := &store.Device{IEEEAddress: testIEEE, Manufacturer: fp300.Manufacturer, Model: fp300.Model}
	msgs := buildDiscovery(dev, "zigbee2mqtt", "homeassistant")
	if want := len(fp300.Entities()) + len(standardProps) - 1; len(msgs) != want {
		t.Fatalf("messages = %d, want %d", len(msgs), want)
	}

	get := func(component, key string) haDiscovery {
		t.Helper()
		topic := "homeassistant/" + component + "/zigbee_" + testIEEE + "/" + key + "/config"
		for _, m := range msgs {
			if m.Topic == topic {
				var p haDiscovery
				if err := json.Unmarshal(m.Payload, &p); err != nil {
					t.Fatal(err)
				}
				return p
			}
		}
		t.Fatalf("%s not found", topic)
		return haDiscovery{}
	}

	sw := get("switch", "detection_range_0_1m")
	if sw.PayloadOn != `{"detection_range_0_1m":"ON"}` || sw.StateOn != "ON" || sw.CommandTopic != "zigbee2mqtt/"+testIEEE+"/set" {
		t.Errorf("switch = %+v", sw)
	}
	if !strings.HasPrefix(sw.Name, fp300.FriendlyName) {
		t.Errorf("switch name = %q", sw.Name)
	}

	sel := get("select", "motion_sensitivity")
	if len(sel.Options) != 3 || sel.Options[2] != "high" || !strings.Contains(sel.CommandTemplate, "{{ value }}") {
		t.Errorf("select = %+v", sel)
	}

	num := get("number", "absence_delay_timer")
	if num.Min == nil || *num.Min != 10 || num.Max == nil || *num.Max != 300 || num.Step != 5 {
		t.Errorf("number = %+v", num)
	}

	pir := get("binary_sensor", "pir_detection")
	if pir.EnabledByDefault == nil || *pir.EnabledByDefault {
		t.Errorf("pir_detection enabled_by_default = %v", pir.EnabledByDefault)
	}

	btn := get("button", "restart_device")
	if btn.StateTopic != "" || btn.PayloadPress == "" {
		t.Errorf("button = %+v", btn)
	}

	if other := buildDiscovery(&store.Device{IEEEAddress: testIEEE, Model: "lumi.weather"}, "zigbee2mqtt", "homeassistant"); other != nil {
		t.Errorf("discovery for other model = %d messages", len(other))
	}
}

func TestStateValue(t *testing.T) {
	tests := []struct {
		name    string
		fp      bool
		cluster uint16
		attr    uint16
		raw     any
		key     string
		want    any
		ok      bool
	}{
		{"band switch", true, fp300.DetectionRangeClusterID, 3, false, "detection_range_2_3m", "OFF", true},
		{"select", true, fp300.ManuClusterID, fp300.AttrMotionSensitivity, uint8(2), "motion_sensitivity", "medium", true},
		{"multiplier", true, fp300.ManuClusterID, fp300.AttrTempReportingThreshold, uint16(20), "temp_reporting_threshold", 0.2, true},
		{"presence", true, fp300.ManuClusterID, fp300.AttrPresence, uint8(1), "presence", true, true},
		{"button has no state", true, fp300.ManuClusterID, fp300.AttrRestartDevice, true, "", nil, false},
		{"battery", true, clusters.PowerConfigurationID, clusters.BatteryPercentageRemaining, uint8(160), "battery", 80.0, true},
		{"voltage", false, clusters.PowerConfigurationID, clusters.BatteryVoltage, uint8(31), "voltage", 3100.0, true},
		{"temperature", false, clusters.TemperatureMeasurementID, clusters.MeasuredValue, int16(2540), "temperature", 25.4, true},
		{"illuminance", false, clusters.IlluminanceMeasurementID, clusters.MeasuredValue, uint16(10001), "illuminance", 10.0, true},
		{"occupancy", false, clusters.OccupancySensingID, clusters.Occupancy, uint8(1), "occupancy", true, true},
		{"fp300 attr on other model", false, fp300.ManuClusterID, fp300.AttrPresence, uint8(1), "", nil, false},
		{"unmapped", true, clusters.BasicID, clusters.BasicModel, "x", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, v, ok := stateValue(tt.fp, tt.cluster, tt.attr, tt.raw)
			if ok != tt.ok || key != tt.key {
				t.Fatalf("stateValue = %q, %v, %v; want %q, %v", key, v, ok, tt.key, tt.ok)
			}
			if ok && v != tt.want {
				t.Errorf("value = %v (%T), want %v (%T)", v, v, tt.want, tt.want)
			}
		})
	}
}

func TestDeviceTopicName(t *testing.T) {
	tests := []struct {
		name string
		dev  store.Device
		want string
	}{
		{"friendly name", store.Device{IEEEAddress: testIEEE, FriendlyName: "Living Room"}, "living_room"},
		{"special chars", store.Device{IEEEAddress: testIEEE, FriendlyName: "Hall/Sensor #1"}, "hall_sensor__1"},
		{"fallback to ieee", store.Device{IEEEAddress: testIEEE}, testIEEE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deviceTopicName(&tt.dev); got != tt.want {
				t.Errorf("deviceTopicName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMustJSON(t *testing.T) {
	if got := string(mustJSON(map[string]any{"a": 1})); got != `{"a":1}` {
		t.Errorf("mustJSON = %s", got)
	}
	if got := string(mustJSON(func() {})); got != "{}" {
		t.Errorf("mustJSON(func) = %s, want {}", got)
	}
}
