// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

/*
Package auth verifies the bearer credential presented on the WebSocket
handshake and turns it into an Identity.

Credentials are HMAC-SHA256 signed JWTs carrying the user id and email:

	{"userId": "6650c1...", "email": "jane@example.com", "exp": 1767225600, "iat": ...}

Only HS256 is accepted; tokens signed with any other algorithm (including
"none") are rejected before the signature is checked.

Usage Example:

	verifier, err := auth.NewJWTVerifier(&cfg.Security)
	if err != nil {
	    return err
	}

	identity, err := verifier.Verify(ctx, r.URL.Query().Get("token"))
	switch {
	case errors.Is(err, auth.ErrNoCredentials):
	    // handshake without a token
	case errors.Is(err, auth.ErrExpiredCredentials):
	    // token past its exp claim
	case err != nil:
	    // malformed, forged or missing userId
	}

Errors:

Every failure is an *AuthError wrapping exactly one of ErrNoCredentials,
ErrInvalidCredentials or ErrExpiredCredentials. The underlying jwt error is
kept as the cause and is reachable through errors.Is as well.

Verification is side-effect free and safe for concurrent use.
*/
package auth
