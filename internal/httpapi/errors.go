// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/pkg/errutil"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Timestamp string            `json:"timestamp"`
	Status    int               `json:"status"`
	Error     string            `json:"error"`
	Message   string            `json:"message,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// validationError lists request fields that failed validation, keyed by
// their JSON name.
type validationError map[string]string

func (v validationError) Error() string { return "validation failed" }

// StatusFor maps an auth error kind to its HTTP status.
func StatusFor(kind auth.Kind) int {
	switch kind.Class() {
	case auth.ClassClient:
		return fiber.StatusBadRequest
	case auth.ClassUnauthorized:
		return fiber.StatusUnauthorized
	case auth.ClassForbidden:
		return fiber.StatusForbidden
	case auth.ClassNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler renders errors returned by handlers and middleware.
func errorHandler(logger *slog.Logger, now func() time.Time) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		body := ErrorBody{Timestamp: now().UTC().Format(time.RFC3339)}

		var (
			fiberErr *fiber.Error
			invalid  validationError
		)
		body.Status = statusOf(err)
		switch {
		case errors.As(err, &invalid):
			body.Error = "Validation Failed"
			body.Fields = invalid
		case errors.As(err, &fiberErr):
			body.Error = statusText(fiberErr.Code)
			body.Message = fiberErr.Message
		default:
			kind := auth.KindOf(err)
			body.Error = kind.Title()
			body.Message = kind.Message()
		}

		if body.Status >= fiber.StatusInternalServerError {
			errutil.LogError(c.UserContext(), logger, "request failed", err,
				"method", c.Method(), "path", c.Path())
		}
		return c.Status(body.Status).JSON(body)
	}
}

// statusOf picks the response status for an error returned by a handler.
func statusOf(err error) int {
	var (
		fiberErr *fiber.Error
		invalid  validationError
	)
	switch {
	case errors.As(err, &invalid):
		return fiber.StatusBadRequest
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	default:
		return StatusFor(auth.KindOf(err))
	}
}

func statusText(code int) string {
	if msg := http.StatusText(code); msg != "" {
		return msg
	}
	return "Error"
}
