// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package httpapi

import (
	"context"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/observability"
)

// identityKey is the c.Locals key holding the authenticated *auth.Identity.
const identityKey = "trackmint.identity"

// DefaultPublicPaths are reachable without a bearer token. Logout is public
// so a repeated logout with an already revoked token still succeeds.
var DefaultPublicPaths = []string{
	"/api/auth/{register,login,refresh,logout,forgotPassword,resetPassword}",
}

// Authenticator resolves bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*auth.Identity, error)
}

// compilePatterns compiles public path globs. '/' separates segments so a
// single '*' never spans two of them.
func compilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, oops.Code("HTTP_PUBLIC_PATH_INVALID").With("pattern", p).Wrap(err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// RequireAuth rejects requests without a valid bearer token unless their
// path matches one of public.
func RequireAuth(authn Authenticator, public []glob.Glob) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, g := range public {
			if g.Match(c.Path()) {
				return c.Next()
			}
		}

		id, err := authn.Authenticate(c.UserContext(), BearerToken(c))
		if err != nil {
			return err
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

// BearerToken returns the token from an "Authorization: Bearer" header, or
// "" when there is none.
func BearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(c *fiber.Ctx) (*auth.Identity, bool) {
	id, ok := c.Locals(identityKey).(*auth.Identity)
	return id, ok
}

// countRequests records every response in m.HTTPRequests, labelled by the
// matched route pattern.
func countRequests(m *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// The error handler has not run yet.
			status = statusOf(err)
		}
		m.HTTPRequests.WithLabelValues(c.Route().Path, c.Method(), strconv.Itoa(status)).Inc()
		return err
	}
}
