package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"fp300-bridge/internal/coordinator"
	"fp300-bridge/internal/fp300"
	"fp300-bridge/internal/mqtt"
	"fp300-bridge/internal/store"
	"fp300-bridge/internal/zcl"
	"fp300-bridge/internal/zcl/clusters"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfgPath := pflag.StringP("config", "c", "config.yaml", "path to the YAML config file")
	logLevel := pflag.String("log-level", "", "override log.level (debug, info, warn, error)")
	showVersion := pflag.Bool("version", false, "print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("fp300-bridge starting", "version", version)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
	logger.Info("goodbye")
}

func run(cfg *Config, logger *slog.Logger) error {
	registry := zcl.NewRegistry(logger)
	for _, c := range clusters.Standard() {
		registry.Register(c)
	}
	quirks := coordinator.NewQuirkDB()
	quirks.Add(fp300.NewQuirk(logger))
	quirks.RegisterClusters(registry)
	if cfg.DefinitionsDir != "" {
		if err := coordinator.LoadDefinitionDir(cfg.DefinitionsDir, registry, quirks, logger); err != nil {
			return err
		}
	}
	logger.Info("ZCL registry initialized", "clusters", len(registry.All()), "quirks", quirks.Len())

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	mqttCfg := mqtt.Config{
		Broker:          cfg.MQTT.Broker,
		Username:        cfg.MQTT.Username,
		Password:        cfg.MQTT.Password,
		ClientID:        cfg.MQTT.ClientID,
		TopicPrefix:     cfg.MQTT.TopicPrefix,
		RawPrefix:       cfg.MQTT.RawPrefix,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
	}
	client := mqtt.NewClient(mqttCfg, logger)
	transport := mqtt.NewTransport(client, cfg.MQTT.RawPrefix, logger)

	events := coordinator.NewEventBus(logger)
	coord := coordinator.New(transport, db, registry, quirks, events, logger)

	for _, d := range cfg.Devices {
		if err := coord.SeedDevice(d.device()); err != nil {
			return err
		}
	}

	// Both register connect hooks, so they must exist before the first connect.
	ha := initHomeAssistant(client, coord, mqttCfg, logger)
	webServer, err := initWeb(coord, cfg, logger)
	if err != nil {
		return err
	}

	if err := client.Connect(); err != nil {
		// The client keeps retrying in the background.
		logger.Warn("MQTT broker not reachable yet", "broker", cfg.MQTT.Broker, "err", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	webServer.Stop()
	ha.Stop()
	if err := coord.Close(); err != nil {
		logger.Warn("close transport", "err", err)
	}
	client.Disconnect()
	return nil
}
