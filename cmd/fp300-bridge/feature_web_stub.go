//go:build no_web

package main

import (
	"log/slog"

	"fp300-bridge/internal/coordinator"
)

type webStopper struct{}

func (s *webStopper) Stop() {}

func initWeb(_ *coordinator.Coordinator, _ *Config, _ *slog.Logger) (*webStopper, error) {
	return &webStopper{}, nil
}
