// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

//go:build tools

// Package main pins tool dependencies to go.mod.
package main

import (
	// Runs the integration suites: ginkgo -tags integration ./test/...
	_ "github.com/onsi/ginkgo/v2/ginkgo"
)
