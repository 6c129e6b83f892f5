// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Success messages returned to callers.
const (
	MsgRegistered     = "Account created successfully"
	MsgLoggedIn       = "Login successful"
	MsgRefreshed      = "Token refreshed successfully"
	MsgLoggedOut      = "Logged out successfully"
	MsgResetLinkSent  = "Password reset link sent to your email"
	MsgPasswordWasSet = "Password reset successfully"
)

// dummyPassword is hashed once per Service with the configured hasher. Login
// verifies against that digest when no user matches the email, so unknown and
// known emails cost the same; the outcome of that check is discarded.
//
//nolint:gosec // G101: not a credential.
const dummyPassword = "trackmint-login-timing-equalizer"

var tracer = otel.Tracer("github.com/trackmint/trackmint/internal/auth")

// RegisterInput carries a registration request.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FullName        string
}

// AuthResult is returned by operations that issue tokens.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         Identity
	Message      string
}

// ServiceConfig holds the Service dependencies. All fields except Logger and
// Clock are required.
type ServiceConfig struct {
	Users      UserRepository
	Refresh    *RefreshTokens
	Resets     *ResetTokens
	Ledger     *RevocationLedger
	Codec      *TokenCodec
	Hasher     PasswordHasher
	Notifier   Notifier
	Transactor Transactor
	Clock      Clock
	Logger     *slog.Logger
}

// Service orchestrates registration, login, token refresh, logout and the
// password reset flow, and authenticates bearer tokens.
type Service struct {
	users    UserRepository
	refresh  *RefreshTokens
	resets   *ResetTokens
	ledger   *RevocationLedger
	codec    *TokenCodec
	hasher   PasswordHasher
	notifier Notifier
	tx       Transactor
	clock    Clock
	logger   *slog.Logger

	// dummyHash has the configured hasher's parameters.
	dummyHash string
}

// NewService creates a Service, failing if a required dependency is missing.
func NewService(cfg ServiceConfig) (*Service, error) {
	required := []struct {
		missing bool
		name    string
	}{
		{cfg.Users == nil, "user repository"},
		{cfg.Refresh == nil, "refresh token store"},
		{cfg.Resets == nil, "reset token store"},
		{cfg.Ledger == nil, "revocation ledger"},
		{cfg.Codec == nil, "token codec"},
		{cfg.Hasher == nil, "password hasher"},
		{cfg.Notifier == nil, "notifier"},
		{cfg.Transactor == nil, "transactor"},
	}
	for _, r := range required {
		if r.missing {
			return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("%s is required", r.name)
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	dummyHash, err := cfg.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").With("operation", "hash dummy password").Wrap(err)
	}
	return &Service{
		dummyHash: dummyHash,
		users:     cfg.Users,
		refresh:   cfg.Refresh,
		resets:    cfg.Resets,
		ledger:    cfg.Ledger,
		codec:     cfg.Codec,
		hasher:    cfg.Hasher,
		notifier:  cfg.Notifier,
		tx:        cfg.Transactor,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}, nil
}

// Register creates an account and signs the new user in.
// Checks run in order: email taken, name taken, passwords differ.
func (s *Service) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer func() { endSpan(span, err) }()

	taken, err := s.exists(ctx, s.users.GetByEmail, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, NewError(KindEmailAlreadyExists)
	}
	taken, err = s.exists(ctx, s.users.GetByFullName, in.FullName)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, NewError(KindNameAlreadyTaken)
	}
	if in.Password != in.ConfirmPassword {
		return nil, NewError(KindPasswordMismatch)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}
	user, err := NewUser(in.Email, in.FullName, hash, s.clock.Now())
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "new user").Wrap(err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			return nil, NewError(KindEmailAlreadyExists)
		case errors.Is(err, ErrDuplicateName):
			return nil, NewError(KindNameAlreadyTaken)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "create user").Wrap(err)
	}

	return s.signIn(ctx, user, MsgRegistered)
}

// Login verifies credentials and rotates the user's refresh token. An unknown
// email and a wrong password fail identically with KindInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer func() { endSpan(span, err) }()

	user, lookupErr := s.users.GetByEmail(ctx, email)
	targetHash := s.dummyHash
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "get user by email").Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if lookupErr != nil {
		return nil, NewError(KindInvalidCredentials)
	}
	if verifyErr != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "verify password").Wrap(verifyErr)
	}
	if !valid {
		return nil, NewError(KindInvalidCredentials)
	}

	return s.signIn(ctx, user, MsgLoggedIn)
}

// Refresh mints a new access token from a refresh token. The refresh token
// itself is returned unchanged. Checks run in order: unknown, revoked,
// expired. An expired row is deleted.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (res *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.Refresh")
	defer func() { endSpan(span, err) }()

	row, err := s.refresh.Lookup(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if row.Revoked {
		return nil, NewError(KindTokenRevoked)
	}
	if row.IsExpiredAt(s.clock.Now()) {
		if err := s.refresh.Delete(ctx, row.ID); err != nil {
			return nil, err
		}
		return nil, NewError(KindTokenExpired)
	}

	user, err := s.users.GetByID(ctx, row.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, NewError(KindInvalidRefreshToken)
	}
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").With("operation", "get user by id").Wrap(err)
	}

	access, err := s.codec.Issue(user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refreshToken,
		User:         user.Identity(),
		Message:      MsgRefreshed,
	}, nil
}

// Logout blocklists the access token and revokes the refresh token. Only a
// token that still verifies is recorded: a forged or expired one can never
// authenticate, so it is skipped and the call still succeeds. Revoking the
// refresh token is best-effort. Repeated calls succeed.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.Logout")
	defer func() { endSpan(span, err) }()

	if accessToken == "" {
		return NewError(KindNotAuthorized)
	}

	claims, parseErr := s.codec.Parse(accessToken)
	if parseErr == nil {
		if err := s.ledger.Revoke(ctx, accessToken, claims.ExpiresAt); err != nil {
			return err
		}
	} else {
		s.logger.DebugContext(ctx, "logout with unverifiable access token",
			"operation", "revoke_access_token",
			"kind", string(KindOf(parseErr)))
	}

	if err := s.refresh.Revoke(ctx, refreshToken); err != nil {
		s.logger.WarnContext(ctx, "best-effort refresh token revoke failed",
			"operation", "revoke_refresh_token",
			"error", err.Error())
	}
	return nil
}

// ForgotPassword issues a reset token for the account and hands it to the
// notifier. If delivery fails the token stays valid and the call fails with
// KindEmailSendFailed.
func (s *Service) ForgotPassword(ctx context.Context, email string) (msg string, err error) {
	ctx, span := tracer.Start(ctx, "auth.ForgotPassword")
	defer func() { endSpan(span, err) }()

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", NewError(KindUserNotFound)
	}
	if err != nil {
		return "", oops.Code("AUTH_FORGOT_FAILED").With("operation", "get user by email").Wrap(err)
	}

	token, _, err := s.resets.Issue(ctx, user.ID)
	if err != nil {
		return "", err
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
		s.logger.ErrorContext(ctx, "password reset delivery failed",
			"user_id", user.ID.String(),
			"error", err.Error())
		return "", NewError(KindEmailSendFailed)
	}
	return MsgResetLinkSent, nil
}

// ResetPassword consumes a reset token and sets a new password. Checks run
// in order: unknown, expired, used, passwords differ. An expired row is
// deleted.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirmPassword string) (msg string, err error) {
	ctx, span := tracer.Start(ctx, "auth.ResetPassword")
	defer func() { endSpan(span, err) }()

	row, err := s.resets.Lookup(ctx, token)
	if err != nil {
		return "", err
	}
	if row.IsExpiredAt(s.clock.Now()) {
		if err := s.resets.Delete(ctx, row.ID); err != nil {
			return "", err
		}
		return "", NewError(KindTokenExpired)
	}
	if row.Used {
		return "", NewError(KindTokenAlreadyUsed)
	}
	if password != confirmPassword {
		return "", NewError(KindPasswordMismatch)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", oops.Code("AUTH_RESET_FAILED").With("operation", "hash password").Wrap(err)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.resets.MarkUsed(ctx, row.ID); err != nil {
			return err
		}
		if err := s.users.UpdatePassword(ctx, row.UserID, hash, s.clock.Now()); err != nil {
			return oops.Code("AUTH_RESET_FAILED").With("operation", "update password").Wrap(err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return MsgPasswordWasSet, nil
}

// Authenticate resolves a bearer token to the identity it was issued for.
// A blocklisted token is rejected with KindTokenRevoked even while its
// signature and expiry still verify.
func (s *Service) Authenticate(ctx context.Context, bearer string) (id *Identity, err error) {
	ctx, span := tracer.Start(ctx, "auth.Authenticate")
	defer func() { endSpan(span, err) }()

	if bearer == "" {
		return nil, NewError(KindNotAuthorized)
	}
	email, err := s.codec.Verify(bearer)
	if err != nil {
		return nil, err
	}
	revoked, err := s.ledger.IsRevoked(ctx, bearer)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, NewError(KindTokenRevoked)
	}
	return &Identity{Email: email}, nil
}

// signIn issues an access token and rotates the refresh token for user.
func (s *Service) signIn(ctx context.Context, user *User, msg string) (*AuthResult, error) {
	access, err := s.codec.Issue(user.Email)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.refresh.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user.Identity(),
		Message:      msg,
	}, nil
}

func (s *Service) exists(ctx context.Context, get func(context.Context, string) (*User, error), key string) (bool, error) {
	_, err := get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, oops.Code("AUTH_REGISTER_FAILED").With("operation", "check uniqueness").Wrap(err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		kind := KindOf(err)
		span.SetAttributes(attribute.String("auth.error_kind", string(kind)))
		if kind.Class() == ClassServer {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
