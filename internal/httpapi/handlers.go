// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package httpapi

import (
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/trackmint/trackmint/internal/auth"
	"github.com/trackmint/trackmint/internal/observability"
)

// minResetPasswordLen is the shortest new password accepted by resetPassword.
const minResetPasswordLen = 6

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
}

// MessageResponse is returned by the operations that only report an outcome.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FullName        string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type handlers struct {
	svc     AuthService
	metrics *observability.Metrics
}

// fields collects validation failures for one request.
type fields validationError

func (f fields) required(name, value, msg string) {
	if strings.TrimSpace(value) == "" {
		f[name] = msg
	}
}

func (f fields) email(name, value string) {
	if _, ok := f[name]; ok {
		return
	}
	// A bare address only: display names and angle brackets would be stored
	// verbatim as a second spelling of the same mailbox.
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Name != "" || addr.Address != value {
		f[name] = "Email should be valid"
	}
}

func (f fields) err() error {
	if len(f) == 0 {
		return nil
	}
	return validationError(f)
}

func parse(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed request body")
	}
	return nil
}

// observe records the outcome of one auth operation.
func (h *handlers) observe(op string, start time.Time, err error) {
	if h.metrics == nil {
		return
	}
	result := observability.ResultOK
	if err != nil {
		result = strings.ToLower(strings.TrimPrefix(string(auth.KindOf(err)), "AUTH_"))
	}
	h.metrics.RecordAuth(op, result, time.Since(start))
}

func authResponse(res *auth.AuthResult) AuthResponse {
	return AuthResponse{
		Success:      true,
		Message:      res.Message,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		FullName:     res.User.FullName,
		Email:        res.User.Email,
	}
}

func (h *handlers) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	f := fields{}
	f.required("email", req.Email, "Email is required")
	f.email("email", req.Email)
	f.required("password", req.Password, "Password is required")
	f.required("confirmPassword", req.ConfirmPassword, "Confirm password is required")
	f.required("fullName", req.FullName, "Full name is required")
	if err := f.err(); err != nil {
		return err
	}

	start := time.Now()
	res, err := h.svc.Register(c.UserContext(), auth.RegisterInput{
		Email:           strings.TrimSpace(req.Email),
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FullName:        strings.TrimSpace(req.FullName),
	})
	h.observe("register", start, err)
	if err != nil {
		return err
	}
	return c.JSON(authResponse(res))
}

func (h *handlers) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	f := fields{}
	f.required("email", req.Email, "Email is required")
	f.required("password", req.Password, "Password is required")
	if err := f.err(); err != nil {
		return err
	}

	start := time.Now()
	res, err := h.svc.Login(c.UserContext(), strings.TrimSpace(req.Email), req.Password)
	h.observe("login", start, err)
	if err != nil {
		return err
	}
	return c.JSON(authResponse(res))
}

func (h *handlers) refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	f := fields{}
	f.required("refreshToken", req.RefreshToken, "Refresh token is required")
	if err := f.err(); err != nil {
		return err
	}

	start := time.Now()
	res, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	h.observe("refresh", start, err)
	if err != nil {
		return err
	}
	return c.JSON(authResponse(res))
}

func (h *handlers) logout(c *fiber.Ctx) error {
	var req refreshRequest
	if len(c.Body()) > 0 {
		if err := parse(c, &req); err != nil {
			return err
		}
	}

	start := time.Now()
	err := h.svc.Logout(c.UserContext(), BearerToken(c), req.RefreshToken)
	h.observe("logout", start, err)
	if err != nil {
		return err
	}
	return c.JSON(MessageResponse{Success: true, Message: auth.MsgLoggedOut})
}

func (h *handlers) forgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	f := fields{}
	f.required("email", req.Email, "Email is required")
	f.email("email", req.Email)
	if err := f.err(); err != nil {
		return err
	}

	start := time.Now()
	msg, err := h.svc.ForgotPassword(c.UserContext(), strings.TrimSpace(req.Email))
	h.observe("forgot_password", start, err)
	if err != nil {
		return err
	}
	return c.JSON(MessageResponse{Success: true, Message: msg})
}

func (h *handlers) resetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	f := fields{}
	f.required("token", req.Token, "Token is required")
	f.required("password", req.Password, "Password is required")
	if _, missing := f["password"]; !missing && len(req.Password) < minResetPasswordLen {
		f["password"] = "Password must be at least 6 characters"
	}
	f.required("confirmPassword", req.ConfirmPassword, "Confirm password is required")
	if err := f.err(); err != nil {
		return err
	}

	start := time.Now()
	msg, err := h.svc.ResetPassword(c.UserContext(), req.Token, req.Password, req.ConfirmPassword)
	h.observe("reset_password", start, err)
	if err != nil {
		return err
	}
	return c.JSON(MessageResponse{Success: true, Message: msg})
}

func (h *handlers) me(c *fiber.Ctx) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return auth.NewError(auth.KindNotAuthorized)
	}
	return c.JSON(id)
}
