// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package auth

import "time"

// Clock supplies the current time for every issued-at and expires-at
// comparison in the package.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }
