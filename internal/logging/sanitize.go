// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package logging

import "strings"

// SanitizeToken masks a bearer token, keeping the first and last 4 characters.
//
//	"eyJhbGciOiJIUzI1NiJ9.e30.sig-sig-sig" -> "eyJh...-sig"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeEmail masks the local part of an address.
//
//	"jane.doe@example.com" -> "ja***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return "***" + domain
	}
	return local[:2] + "***" + domain
}

// SanitizeLogValue strips control characters and caps length so peer-supplied
// strings (origins, unknown event types) cannot forge log lines.
func SanitizeLogValue(s string) string {
	const maxLen = 128
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= maxLen {
			b.WriteString("...")
			break
		}
	}
	return b.String()
}
