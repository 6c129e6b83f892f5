// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/samber/oops"
)

// OpaqueTokenBytes is the entropy of refresh and reset tokens
// (32 bytes = 64 hex chars).
const OpaqueTokenBytes = 32

// GenerateOpaqueToken creates a random token and its hash.
// The plaintext goes to the client; only the hash is stored.
func GenerateOpaqueToken() (token, hash string, err error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", OpaqueTokenBytes).
			Wrap(err)
	}
	token = hex.EncodeToString(buf)
	return token, HashToken(token), nil
}

// HashToken returns the hex SHA-256 digest of a token. Stores key refresh,
// reset and revoked tokens by this digest.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
