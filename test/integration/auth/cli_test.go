// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

//go:build integration

package auth_test

import (
	"os/exec"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("trackmint CLI", func() {
	run := func(env []string, args ...string) (string, error) {
		cmd := exec.Command("go", append([]string{"run", "."}, args...)...)
		cmd.Dir = "../../../cmd/trackmint"
		cmd.Env = append(cmd.Environ(), env...)
		out, err := cmd.CombinedOutput()
		return string(out), err
	}

	It("reports every migration as applied", func() {
		out, err := run([]string{"DATABASE_URL=" + env.connStr}, "migrate", "status")
		Expect(err).NotTo(HaveOccurred(), out)
		Expect(out).To(ContainSubstring("[applied] 000001_users"))
		Expect(out).To(ContainSubstring("[applied] 000002_tokens"))
		Expect(out).NotTo(ContainSubstring("[pending]"))
	})

	It("sweeps the postgres store", func() {
		out, err := run([]string{
			"DATABASE_URL=" + env.connStr,
			"TRACKMINT_TOKEN_SECRET=integration-secret-0123456789abcdef",
		}, "sweep")
		Expect(err).NotTo(HaveOccurred(), out)
		Expect(out).To(ContainSubstring("Removed"))
	})

	It("fails with CONFIG_INVALID when DATABASE_URL is missing", func() {
		out, err := run([]string{"DATABASE_URL="}, "migrate", "status")
		Expect(err).To(HaveOccurred())
		Expect(out).To(ContainSubstring("DATABASE_URL"))
	})
})
