// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

// Package services adapts CO2Track components to suture.Service.
//
//   - HubService runs websocket.Hub.RunWithContext.
//   - HTTPServerService runs an *http.Server and drains it on cancellation.
package services
