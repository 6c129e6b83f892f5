// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackMint Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Repository sentinels. Repositories wrap these in oops errors carrying
// operation context; callers test with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a unique key is already present.
	ErrAlreadyExists = errors.New("already exists")

	// ErrDuplicateEmail is returned by UserRepository.Create when the email
	// is already registered.
	ErrDuplicateEmail = errors.New("duplicate email")

	// ErrDuplicateName is returned by UserRepository.Create when the display
	// name is already taken.
	ErrDuplicateName = errors.New("duplicate full name")
)

// Kind classifies every failure the auth core reports to callers.
type Kind string

// The closed set of failure kinds.
const (
	KindEmailAlreadyExists  Kind = "AUTH_EMAIL_ALREADY_EXISTS"
	KindNameAlreadyTaken    Kind = "AUTH_NAME_ALREADY_TAKEN"
	KindPasswordMismatch    Kind = "AUTH_PASSWORD_MISMATCH"
	KindInvalidCredentials  Kind = "AUTH_INVALID_CREDENTIALS"
	KindUserNotFound        Kind = "AUTH_USER_NOT_FOUND"
	KindInvalidToken        Kind = "AUTH_INVALID_TOKEN"
	KindInvalidRefreshToken Kind = "AUTH_INVALID_REFRESH_TOKEN"
	KindTokenExpired        Kind = "AUTH_TOKEN_EXPIRED"
	KindTokenAlreadyUsed    Kind = "AUTH_TOKEN_ALREADY_USED"
	KindTokenRevoked        Kind = "AUTH_TOKEN_REVOKED"
	KindNotAuthorized       Kind = "AUTH_NOT_AUTHORIZED"
	KindEmailSendFailed     Kind = "AUTH_EMAIL_SEND_FAILED"

	// KindInternal covers storage and other unclassified faults.
	KindInternal Kind = "AUTH_INTERNAL"
)

// StatusClass groups kinds by how a transport should report them.
type StatusClass int

// Status classes.
const (
	ClassServer StatusClass = iota
	ClassClient
	ClassUnauthorized
	ClassForbidden
	ClassNotFound
)

type kindInfo struct {
	title   string
	message string
	class   StatusClass
}

var kinds = map[Kind]kindInfo{
	KindEmailAlreadyExists: {
		"Email Already Exists",
		"Email already exists. Please use a different email or login.",
		ClassClient,
	},
	KindNameAlreadyTaken: {
		"Name Already Taken",
		"This name is already taken. Please use a different name.",
		ClassClient,
	},
	KindPasswordMismatch: {
		"Password Mismatch",
		"Passwords do not match. Please try again.",
		ClassClient,
	},
	KindInvalidCredentials: {
		"Invalid Credentials",
		"Invalid email or password. Please try again.",
		ClassUnauthorized,
	},
	KindUserNotFound: {
		"User Not Found",
		"No account found with this email.",
		ClassNotFound,
	},
	KindInvalidToken: {
		"Invalid Token",
		"Invalid or expired token. Please request a new one.",
		ClassClient,
	},
	KindInvalidRefreshToken: {
		"Invalid Refresh Token",
		"Invalid refresh token. Please login again.",
		ClassUnauthorized,
	},
	KindTokenExpired: {
		"Token Expired",
		"Your session has expired. Please login again.",
		ClassUnauthorized,
	},
	KindTokenAlreadyUsed: {
		"Token Already Used",
		"This reset link has already been used. Please request a new one.",
		ClassClient,
	},
	KindTokenRevoked: {
		"Token Revoked",
		"Your session has been revoked. Please login again.",
		ClassUnauthorized,
	},
	KindNotAuthorized: {
		"Not Authorized",
		"You are not authorized to perform this action.",
		ClassForbidden,
	},
	KindEmailSendFailed: {
		"Email Send Failed",
		"Failed to send email. Please try again later.",
		ClassServer,
	},
	KindInternal: {
		"Internal Server Error",
		"Something went wrong. Please try again later.",
		ClassServer,
	},
}

// Title returns the short human-readable name of the kind.
func (k Kind) Title() string { return k.info().title }

// Message returns the user-facing message for the kind.
func (k Kind) Message() string { return k.info().message }

// Class returns the status class of the kind.
func (k Kind) Class() StatusClass { return k.info().class }

func (k Kind) info() kindInfo {
	if info, ok := kinds[k]; ok {
		return info
	}
	return kinds[KindInternal]
}

// NewError returns an oops error whose code is the kind and whose message is
// the kind's user-facing message.
func NewError(kind Kind) error {
	return oops.Code(string(kind)).Errorf("%s", kind.Message())
}

// KindOf reports the kind carried by err. Errors that carry no known kind,
// including every storage failure, are KindInternal. A nil error has no kind
// and reports the empty string.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindInternal
	}
	code, ok := oopsErr.Code().(string)
	if !ok {
		return KindInternal
	}
	if _, known := kinds[Kind(code)]; !known {
		return KindInternal
	}
	return Kind(code)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
