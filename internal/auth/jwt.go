// CO2Track - Carbon Footprint Tracking and Reduction Goals
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/co2track

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/co2track/internal/config"
)

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier creates and validates HS256 tokens.
type JWTVerifier struct {
	secret  []byte
	timeout time.Duration
	now     func() time.Time
	parser  *jwt.Parser
}

// Option customizes a JWTVerifier.
type Option func(*JWTVerifier)

// WithTimeFunc replaces time.Now for issuing and validating tokens.
func WithTimeFunc(now func() time.Time) Option {
	return func(v *JWTVerifier) {
		v.now = now
	}
}

// NewJWTVerifier creates a verifier with the configured secret and session
// timeout. The secret must not be empty.
func NewJWTVerifier(cfg *config.SecurityConfig, opts ...Option) (*JWTVerifier, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}

	v := &JWTVerifier{
		secret:  []byte(cfg.JWTSecret),
		timeout: cfg.SessionTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithIssuedAt(),
	)
	return v, nil
}

// GenerateToken issues a signed token for the identity, valid for the
// configured session timeout.
func (v *JWTVerifier) GenerateToken(id Identity) (string, error) {
	now := v.now()
	claims := &Claims{
		UserID: id.UserID,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(v.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates the token and extracts the identity. Any failure is an
// *AuthError.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, &AuthError{Kind: ErrNoCredentials}
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, &AuthError{Kind: ErrInvalidCredentials, Cause: err}
	}

	parsed, err := v.parser.ParseWithClaims(token, &Claims{}, v.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, &AuthError{Kind: ErrExpiredCredentials, Cause: err}
		}
		return Identity{}, &AuthError{Kind: ErrInvalidCredentials, Cause: err}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, &AuthError{Kind: ErrInvalidCredentials, Cause: errors.New("invalid token claims")}
	}
	if claims.UserID == "" {
		return Identity{}, &AuthError{Kind: ErrInvalidCredentials, Cause: errors.New("token has no userId claim")}
	}

	return Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

func (v *JWTVerifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.secret, nil
}
