//go:build !no_homeassistant

package main

import (
	"log/slog"

	"fp300-bridge/internal/coordinator"
	"fp300-bridge/internal/mqtt"
)

type haStopper struct {
	bridge *mqtt.Bridge
}

func (h *haStopper) Stop() {
	if h.bridge != nil {
		h.bridge.Stop()
	}
}

func initHomeAssistant(client *mqtt.Client, coord *coordinator.Coordinator, cfg mqtt.Config, logger *slog.Logger) *haStopper {
	bridge := mqtt.NewBridge(client, coord, cfg, logger)
	bridge.Start()
	return &haStopper{bridge: bridge}
}
