// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// DefaultAccessTokenTTL is the access token lifetime when none is configured.
const DefaultAccessTokenTTL = time.Hour

// MinSecretLength is the shortest accepted HMAC signing secret.
const MinSecretLength = 32

// AccessClaims are the verified contents of an access token.
type AccessClaims struct {
	Email     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and verifies HS256-signed access tokens. Verification is
// stateless; revocation is checked separately against the ledger.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  Clock
}

// NewTokenCodec creates a codec. The secret must be at least MinSecretLength
// bytes and ttl must be positive.
func NewTokenCodec(secret []byte, issuer string, ttl time.Duration, clock Clock) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_SECRET_TOO_SHORT").
			With("min_length", MinSecretLength).
			Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, oops.Code("TOKEN_INVALID_TTL").Errorf("access token ttl must be positive, got %s", ttl)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenCodec{secret: secret, issuer: issuer, ttl: ttl, clock: clock}, nil
}

// TTL returns the configured access token lifetime.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue returns a signed token for email expiring one TTL from now.
func (c *TokenCodec) Issue(email string) (string, error) {
	if email == "" {
		return "", oops.Code("TOKEN_EMPTY_SUBJECT").Errorf("subject email cannot be empty")
	}
	now := c.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		Issuer:    c.issuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("operation", "sign access token").Wrap(err)
	}
	return signed, nil
}

// Verify returns the subject email of a valid token. It fails with
// KindInvalidToken for a bad signature or malformed token and with
// KindTokenExpired once the expiry is at or before the clock reading.
func (c *TokenCodec) Verify(token string) (string, error) {
	claims, err := c.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}

// Parse verifies the token like Verify and returns all of its claims.
func (c *TokenCodec) Parse(token string) (*AccessClaims, error) {
	if token == "" {
		return nil, NewError(KindInvalidToken)
	}

	var claims jwt.RegisteredClaims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, NewError(KindTokenExpired)
	case err != nil, !parsed.Valid, claims.Subject == "":
		return nil, NewError(KindInvalidToken)
	}

	out := &AccessClaims{
		Email:     claims.Subject,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.UTC()
	}
	return out, nil
}
