// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

// Package main is a command-line client for the CO2Track notification
// server. It connects with CLIENT_TOKEN, subscribes to the requested topics
// after every (re)connect and logs each received event as one JSON line.
//
// Example:
//
//	export CLIENT_ORIGIN=https://co2.example.com
//	export CLIENT_TOKEN=eyJhbGciOi...
//	./co2track-wsclient -co2 transport,energy -goal g1
//
// The process exits with status 1 once reconnection attempts are exhausted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tomtom215/co2track/internal/config"
	"github.com/tomtom215/co2track/internal/logging"
	ws "github.com/tomtom215/co2track/internal/websocket"
	"github.com/tomtom215/co2track/internal/wsclient"
)

func main() {
	co2Types := flag.String("co2", "", "comma-separated CO2 data types to subscribe to")
	goalIDs := flag.String("goal", "", "comma-separated goal IDs to subscribe to")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	if cfg.Client.Token == "" {
		logging.Fatal().Msg("CLIENT_TOKEN is required")
	}

	subs := subscriptions(splitList(*co2Types), splitList(*goalIDs))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := wsclient.NewConnector(wsclient.OptionsFromConfig(cfg.Client))

	lost := make(chan struct{})
	conn.On(wsclient.EventOpen, func(wsclient.Message) {
		for _, ev := range subs {
			conn.Send(ev)
		}
	})
	conn.On(wsclient.EventConnectionLost, func(wsclient.Message) {
		close(lost)
	})
	conn.On(wsclient.Wildcard, logEvent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := conn.Connect(ctx, cfg.Client.Token); err != nil {
		logging.Warn().Err(err).Msg("Initial connection failed")
	}

	exitCode := 0
	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-lost:
		exitCode = 1
	}

	conn.Disconnect()
	cancel()
	os.Exit(exitCode)
}

func logEvent(m wsclient.Message) {
	e := logging.Info().Str("type", m.Type)
	if len(m.Payload) > 0 {
		e = e.RawJSON("payload", m.Payload)
	}
	e.Msg("event")
}

func subscriptions(co2Types, goalIDs []string) []ws.Event {
	out := make([]ws.Event, 0, len(co2Types)+len(goalIDs))
	for _, t := range co2Types {
		out = append(out, ws.Event{Type: ws.TypeSubscribeCO2Data, Payload: ws.SubscribeCO2Data{DataType: t}})
	}
	for _, id := range goalIDs {
		out = append(out, ws.Event{Type: ws.TypeSubscribeGoalProgress, Payload: ws.SubscribeGoalProgress{GoalID: id}})
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
