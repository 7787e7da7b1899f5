package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig([]byte("mqtt:\n  broker: tcp://localhost:1883\n"))
	if err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		name, got, want string
	}{
		{"web.listen", cfg.Web.Listen, "127.0.0.1:8080"},
		{"store.path", cfg.Store.Path, "fp300-bridge.db"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "zigbee2mqtt"},
		{"mqtt.raw_prefix", cfg.MQTT.RawPrefix, "zigbee/raw"},
		{"mqtt.discovery_prefix", cfg.MQTT.DiscoveryPrefix, "homeassistant"},
		{"log.level", cfg.Log.Level, "info"},
		{"log.format", cfg.Log.Format, "text"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
	if !cfg.webEnabled() {
		t.Error("web should be enabled by default")
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestParseConfigDevices(t *testing.T) {
	data := `
mqtt:
  broker: tcp://broker:1883
  client_id: bridge-1
web:
  enabled: false
devices:
  - ieee: "54:ef:44:10:00:a1:b2:c3"
    model: lumi.sensor_occupy.agl8
    friendly_name: Hallway
  - ieee: "0x00158D00012A3B4D"
    endpoints: [1, 2]
definitions_dir: /etc/fp300-bridge/definitions
`
	cfg, err := parseConfig([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.webEnabled() {
		t.Error("web.enabled: false ignored")
	}
	if cfg.MQTT.ClientID != "bridge-1" || cfg.DefinitionsDir != "/etc/fp300-bridge/definitions" {
		t.Errorf("config = %+v", cfg)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(cfg.Devices))
	}

	dev := cfg.Devices[0].device()
	if dev.FriendlyName != "Hallway" || len(dev.Endpoints) != 1 || dev.Endpoints[0] != 1 {
		t.Errorf("first device = %+v", dev)
	}
	if eps := cfg.Devices[1].device().Endpoints; len(eps) != 2 || eps[1] != 2 {
		t.Errorf("second device endpoints = %v", eps)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing broker", "store:\n  path: x.db\n", "mqtt.broker is required"},
		{"wildcard prefix", "mqtt:\n  broker: tcp://b\n  topic_prefix: a/+\n", "must not contain wildcards"},
		{"same prefixes", "mqtt:\n  broker: tcp://b\n  topic_prefix: z\n  raw_prefix: z\n", "must differ"},
		{"bad ieee", "mqtt:\n  broker: tcp://b\ndevices:\n  - ieee: kitchen\n", "devices[0]"},
		{"duplicate ieee", "mqtt:\n  broker: tcp://b\ndevices:\n  - ieee: 54EF441000A1B2C3\n  - ieee: 54:EF:44:10:00:A1:B2:C3\n", "duplicate ieee"},
		{"bad endpoint", "mqtt:\n  broker: tcp://b\ndevices:\n  - ieee: 54EF441000A1B2C3\n    endpoints: [0]\n", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseConfig([]byte(tt.yaml))
			if err != nil {
				t.Fatal(err)
			}
			err = cfg.validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("validate = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mqtt:\n  broker: tcp://b\nlog:\n  format: json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log.format = %q", cfg.Log.Format)
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := parseConfig([]byte("mqtt: [")); err == nil {
		t.Error("expected error for bad yaml")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
