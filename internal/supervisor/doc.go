// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

/*
Package supervisor runs the notification server's long-lived services under
a suture v4 supervisor tree.

	co2track
	├── notify-layer
	│   └── services.HubService (websocket hub run loop)
	└── api-layer
	    └── services.HTTPServerService

Crashed services are restarted with suture's failure threshold, decay and
backoff. Supervisor events are logged through sutureslog into the slog
bridge set up by the logging package.

Usage:

	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	tree.AddNotifyService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
	errCh := tree.ServeBackground(ctx)

Cancel ctx to shut down. Each service gets ShutdownTimeout to return;
UnstoppedServiceReport lists the ones that did not.
*/
package supervisor
