// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

// Package main runs the CO2Track real-time notification server.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. Logging
//  3. Credential verifier (JWT_SECRET)
//  4. WebSocket hub and HTTP router
//  5. Supervisor tree: hub in the notify layer, HTTP server in the api layer
//
// SIGINT or SIGTERM cancels the tree. The hub closes every connection with
// 1001 and the HTTP server drains within SHUTDOWN_TIMEOUT.
//
// Example:
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export CORS_ORIGINS=https://co2.example.com
//	./co2track-server
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/co2track/internal/api"
	"github.com/tomtom215/co2track/internal/auth"
	"github.com/tomtom215/co2track/internal/config"
	"github.com/tomtom215/co2track/internal/logging"
	"github.com/tomtom215/co2track/internal/supervisor"
	"github.com/tomtom215/co2track/internal/supervisor/services"
	ws "github.com/tomtom215/co2track/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Str("ws_path", cfg.WebSocket.Path).
		Strs("cors_origins", cfg.Security.CORSOrigins).
		Msg("Starting CO2Track notification server")

	verifier, err := auth.NewJWTVerifier(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize credential verifier")
	}

	hub := ws.NewHub(cfg.WebSocket)
	router := api.NewRouter(cfg, hub, verifier)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	treeConfig := supervisor.DefaultTreeConfig()
	treeConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeConfig)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddNotifyService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped")
}
