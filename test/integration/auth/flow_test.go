// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

//go:build integration

package auth_test

import (
	"context"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var ana = map[string]string{
	"email":           "ana@example.com",
	"password":        "first-pass",
	"confirmPassword": "first-pass",
	"fullName":        "Ana Lima",
}

var _ = Describe("Auth API over PostgreSQL", func() {
	var (
		ctx  context.Context
		mail *mailbox
		app  *fiber.App
	)

	BeforeEach(func() {
		ctx = context.Background()
		cleanupDatabase(ctx, env.pool)
		mail = &mailbox{}
		app = newApp(mail)
	})

	Describe("sessions", func() {
		It("keeps a single refresh token per user across logins", func() {
			status, body := call(app, http.MethodPost, "/api/auth/register", ana, "")
			Expect(status).To(Equal(http.StatusOK), "%v", body)
			firstRefresh := body["refreshToken"].(string)

			status, body = call(app, http.MethodPost, "/api/auth/login",
				map[string]string{"email": "ana@example.com", "password": "first-pass"}, "")
			Expect(status).To(Equal(http.StatusOK), "%v", body)

			var n int
			Expect(env.pool.QueryRow(ctx, `SELECT COUNT(*) FROM refresh_tokens`).Scan(&n)).To(Succeed())
			Expect(n).To(Equal(1))

			status, body = call(app, http.MethodPost, "/api/auth/refresh",
				map[string]string{"refreshToken": firstRefresh}, "")
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["error"]).To(Equal("Invalid Refresh Token"))
		})

		It("revokes the access token and refresh token on logout", func() {
			_, body := call(app, http.MethodPost, "/api/auth/register", ana, "")
			access := body["accessToken"].(string)
			refresh := body["refreshToken"].(string)

			status, _ := call(app, http.MethodGet, "/api/auth/me", nil, access)
			Expect(status).To(Equal(http.StatusOK))

			status, body = call(app, http.MethodPost, "/api/auth/logout",
				map[string]string{"refreshToken": refresh}, access)
			Expect(status).To(Equal(http.StatusOK), "%v", body)

			status, body = call(app, http.MethodGet, "/api/auth/me", nil, access)
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(body["error"]).To(Equal("Token Revoked"))

			status, _ = call(app, http.MethodPost, "/api/auth/refresh",
				map[string]string{"refreshToken": refresh}, "")
			Expect(status).To(Equal(http.StatusUnauthorized))

			var n int
			Expect(env.pool.QueryRow(ctx, `SELECT COUNT(*) FROM revoked_tokens`).Scan(&n)).To(Succeed())
			Expect(n).To(Equal(1))
		})
	})

	Describe("registration", func() {
		It("admits exactly one of many concurrent sign-ups for one email", func() {
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				results = map[int]int{}
			)
			for i := range 6 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					req := map[string]string{
						"email":           "race@example.com",
						"password":        "first-pass",
						"confirmPassword": "first-pass",
						"fullName":        "Racer " + string(rune('A'+i)),
					}
					status, _ := call(app, http.MethodPost, "/api/auth/register", req, "")
					mu.Lock()
					results[status]++
					mu.Unlock()
				}()
			}
			wg.Wait()

			Expect(results[http.StatusOK]).To(Equal(1))
			Expect(results[http.StatusBadRequest]).To(Equal(5))
		})
	})

	Describe("password reset", func() {
		It("sets a new password once and rejects the reused token", func() {
			call(app, http.MethodPost, "/api/auth/register", ana, "")

			status, _ := call(app, http.MethodPost, "/api/auth/forgotPassword",
				map[string]string{"email": "ana@example.com"}, "")
			Expect(status).To(Equal(http.StatusOK))
			token := mail.tokenFor("ana@example.com")
			Expect(token).NotTo(BeEmpty())

			var stored string
			Expect(env.pool.QueryRow(ctx, `SELECT token_hash FROM password_reset_tokens`).Scan(&stored)).To(Succeed())
			Expect(stored).NotTo(Equal(token), "only the digest is persisted")

			reset := map[string]string{"token": token, "password": "second-pass", "confirmPassword": "second-pass"}
			status, body := call(app, http.MethodPost, "/api/auth/resetPassword", reset, "")
			Expect(status).To(Equal(http.StatusOK), "%v", body)

			status, body = call(app, http.MethodPost, "/api/auth/resetPassword", reset, "")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body["error"]).To(Equal("Token Already Used"))

			status, _ = call(app, http.MethodPost, "/api/auth/login",
				map[string]string{"email": "ana@example.com", "password": "first-pass"}, "")
			Expect(status).To(Equal(http.StatusUnauthorized))
			status, _ = call(app, http.MethodPost, "/api/auth/login",
				map[string]string{"email": "ana@example.com", "password": "second-pass"}, "")
			Expect(status).To(Equal(http.StatusOK))
		})
	})
})
