//go:build no_homeassistant

package main

import (
	"log/slog"

	"fp300-bridge/internal/coordinator"
	"fp300-bridge/internal/mqtt"
)

type haStopper struct{}

func (h *haStopper) Stop() {}

func initHomeAssistant(_ *mqtt.Client, _ *coordinator.Coordinator, _ mqtt.Config, _ *slog.Logger) *haStopper {
	return &haStopper{}
}
