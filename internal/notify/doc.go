// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

// Package notify delivers password reset links. Every type here satisfies
// auth.Notifier.
package notify
