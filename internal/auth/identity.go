// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package auth

import (
	"context"
	"errors"
)

// Identity is the authenticated principal behind a connection. It is derived
// once at handshake and never changes for the life of the connection.
type Identity struct {
	UserID string
	Email  string
}

// IsZero reports whether the identity carries no user id.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}

// Standard authentication errors
var (
	// ErrNoCredentials indicates no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates credentials have expired.
	ErrExpiredCredentials = errors.New("credentials expired")
)

// AuthError describes a rejected credential.
type AuthError struct {
	// Kind is one of the sentinel errors above.
	Kind error
	// Cause is the underlying parser error, if any.
	Cause error
}

func (e *AuthError) Error() string {
	if e.Cause == nil {
		return "auth: " + e.Kind.Error()
	}
	return "auth: " + e.Kind.Error() + ": " + e.Cause.Error()
}

// Unwrap exposes both the sentinel and the cause to errors.Is and errors.As.
func (e *AuthError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Verifier maps an opaque credential to an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type identityKey struct{}

// ContextWithIdentity returns ctx carrying id.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by ContextWithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && !id.IsZero()
}
