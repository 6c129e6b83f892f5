// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

// Package httpapi exposes the auth service over HTTP with fiber.
package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/observability"
)

// AuthService is the part of *auth.Service the HTTP boundary drives.
type AuthService interface {
	Authenticator
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.AuthResult, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password, confirmPassword string) (string, error)
}

// Config configures the HTTP app.
type Config struct {
	Service AuthService
	Logger  *slog.Logger
	// Metrics is optional.
	Metrics *observability.Metrics
	// PublicPaths are glob patterns that skip RequireAuth.
	// Default: DefaultPublicPaths
	PublicPaths []string
	// Now stamps error bodies. Default: time.Now
	Now func() time.Time
}

// New builds the fiber app with every auth route mounted under /api/auth.
func New(cfg Config) (*fiber.App, error) {
	if cfg.Service == nil {
		return nil, oops.Code("HTTP_INVALID_CONFIG").Errorf("auth service is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PublicPaths == nil {
		cfg.PublicPaths = DefaultPublicPaths
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	public, err := compilePatterns(cfg.PublicPaths)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:               "trackmint",
		BodyLimit:             64 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(cfg.Logger, cfg.Now),
	})
	if cfg.Metrics != nil {
		app.Use(countRequests(cfg.Metrics))
	}

	h := &handlers{svc: cfg.Service, metrics: cfg.Metrics}

	api := app.Group("/api", RequireAuth(cfg.Service, public))
	routes := api.Group("/auth")
	routes.Post("/register", h.register)
	routes.Post("/login", h.login)
	routes.Post("/refresh", h.refresh)
	routes.Post("/logout", h.logout)
	routes.Post("/forgotPassword", h.forgotPassword)
	routes.Post("/resetPassword", h.resetPassword)
	routes.Get("/me", h.me)

	return app, nil
}
