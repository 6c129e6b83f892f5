// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

// Package auth implements the TrackMint credential and token lifecycle.
//
// # Tokens
//
// Three kinds of token are handled:
//   - Access tokens: short-lived HS256 JWTs issued by TokenCodec. They are
//     verified without storage, except for the RevocationLedger check.
//   - Refresh tokens: opaque, stored hashed, one per user (RefreshTokens).
//     They are rotated on login and registration but not on refresh.
//   - Password reset tokens: opaque, stored hashed, one per user, single use,
//     valid for fifteen minutes (ResetTokens).
//
// # Service
//
// Service runs each operation's checks in a fixed order, so an input with
// several problems always reports the same error. Every failure meant for
// callers carries a Kind; use KindOf to recover it. Anything else, such as
// a storage fault, reports KindInternal.
//
// Repository interfaces are implemented in the postgres and memory
// subpackages.
package auth
