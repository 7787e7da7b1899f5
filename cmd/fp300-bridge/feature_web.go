//go:build !no_web

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fp300-bridge/internal/coordinator"
	"fp300-bridge/internal/web"
)

type webStopper struct {
	server *web.Server
	http   *http.Server
	logger *slog.Logger
}

func (s *webStopper) Stop() {
	if s.http == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("http server shutdown", "err", err)
	}
	s.server.Stop()
}

func initWeb(coord *coordinator.Coordinator, cfg *Config, logger *slog.Logger) (*webStopper, error) {
	if !cfg.webEnabled() {
		return &webStopper{}, nil
	}

	opts := []web.ServerOption{web.WithVersion(version)}
	if cfg.Web.APIKey != "" {
		opts = append(opts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		opts = append(opts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}

	server, err := web.NewServer(coord, logger, opts...)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
		}
	}()

	return &webStopper{server: server, http: httpServer, logger: logger}, nil
}
