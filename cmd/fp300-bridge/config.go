package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fp300-bridge/internal/coordinator"
	"fp300-bridge/internal/store"
)

type Config struct {
	MQTT struct {
		Broker          string `yaml:"broker"`
		Username        string `yaml:"username"`
		Password        string `yaml:"password"`
		ClientID        string `yaml:"client_id"`
		TopicPrefix     string `yaml:"topic_prefix"`
		RawPrefix       string `yaml:"raw_prefix"`
		DiscoveryPrefix string `yaml:"discovery_prefix"`
	} `yaml:"mqtt"`
	Web struct {
		Enabled        *bool    `yaml:"enabled"` // default true
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Devices        []DeviceConfig `yaml:"devices"`
	DefinitionsDir string         `yaml:"definitions_dir"`
}

// DeviceConfig is a statically known device, seeded into the store on start.
type DeviceConfig struct {
	IEEE         string  `yaml:"ieee"`
	Manufacturer string  `yaml:"manufacturer"`
	Model        string  `yaml:"model"`
	FriendlyName string  `yaml:"friendly_name"`
	Endpoints    []uint8 `yaml:"endpoints"`
}

func (d DeviceConfig) device() store.Device {
	eps := d.Endpoints
	if len(eps) == 0 {
		eps = []uint8{1}
	}
	return store.Device{
		IEEEAddress:  d.IEEE,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		FriendlyName: d.FriendlyName,
		Endpoints:    eps,
	}
}

func (c *Config) webEnabled() bool {
	return c.Web.Enabled == nil || *c.Web.Enabled
}

func (c *Config) validate() error {
	var errs []error
	if c.MQTT.Broker == "" {
		errs = append(errs, fmt.Errorf("mqtt.broker is required"))
	}
	if strings.Contains(c.MQTT.TopicPrefix, "+") || strings.Contains(c.MQTT.TopicPrefix, "#") {
		errs = append(errs, fmt.Errorf("mqtt.topic_prefix must not contain wildcards"))
	}
	if strings.Contains(c.MQTT.RawPrefix, "+") || strings.Contains(c.MQTT.RawPrefix, "#") {
		errs = append(errs, fmt.Errorf("mqtt.raw_prefix must not contain wildcards"))
	}
	if c.MQTT.RawPrefix == c.MQTT.TopicPrefix {
		errs = append(errs, fmt.Errorf("mqtt.raw_prefix must differ from mqtt.topic_prefix"))
	}
	if c.webEnabled() && c.Web.Listen == "" {
		errs = append(errs, fmt.Errorf("web.listen is required"))
	}
	seen := make(map[string]bool)
	for i, d := range c.Devices {
		ieee, err := coordinator.NormalizeIEEE(d.IEEE)
		if err != nil {
			errs = append(errs, fmt.Errorf("devices[%d]: %w", i, err))
			continue
		}
		if seen[ieee] {
			errs = append(errs, fmt.Errorf("devices[%d]: duplicate ieee %s", i, ieee))
		}
		seen[ieee] = true
		for _, ep := range d.Endpoints {
			if ep == 0 || ep > 240 {
				errs = append(errs, fmt.Errorf("devices[%d]: endpoint %d out of range 1-240", i, ep))
			}
		}
	}
	return errors.Join(errs...)
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "fp300-bridge.db"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "zigbee2mqtt"
	}
	if cfg.MQTT.RawPrefix == "" {
		cfg.MQTT.RawPrefix = "zigbee/raw"
	}
	if cfg.MQTT.DiscoveryPrefix == "" {
		cfg.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
