// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package wsclient

import (
	"fmt"
	"net/url"
)

// BuildURL derives the handshake URL from the page origin.
//
// Format: ws://{host}{path}?token={token}
//
// Handles:
//   - http → ws
//   - https → wss
//   - token injection as a query parameter
func BuildURL(origin, path, token string) (string, error) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}

	var scheme string
	switch parsed.Scheme {
	case "http":
		scheme = "ws"
	case "https":
		scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}

	u := url.URL{
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   path,
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
