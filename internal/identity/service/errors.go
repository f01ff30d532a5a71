package service

import (
	"errors"
)

// Kind classifies service failures. Handlers map kinds to HTTP status codes.
type Kind string

const (
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindInactiveAccount       Kind = "inactive_account"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindSessionNotFound       Kind = "session_not_found"
	KindSelfImpersonation     Kind = "self_impersonation"
	KindTargetNotFound        Kind = "target_not_found"
	KindForbidden             Kind = "forbidden"
	KindConflict              Kind = "conflict"
	KindRateLimited           Kind = "rate_limited"
	KindInvalidArgument       Kind = "invalid_argument"
	KindUnavailable           Kind = "unavailable"
)

// Error is the typed error returned by the identity services. Message is safe to show to
// clients; Err, when set, is the internal cause and must not be.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrInvalidCredentials) holds for
// every credential failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Message: "invalid username or password"}
	ErrInactiveAccount       = &Error{Kind: KindInactiveAccount, Message: "account is inactive"}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken, Message: "invalid or expired token"}
	ErrImpersonationExpired  = &Error{Kind: KindInvalidOrExpiredToken, Message: "impersonation session expired"}
	ErrSessionNotFound       = &Error{Kind: KindSessionNotFound, Message: "session not found"}
	ErrSelfImpersonation     = &Error{Kind: KindSelfImpersonation, Message: "cannot impersonate yourself"}
	ErrTargetNotFound        = &Error{Kind: KindTargetNotFound, Message: "target user not found or inactive"}
	ErrForbidden             = &Error{Kind: KindForbidden, Message: "admin privileges required"}
	ErrConflict              = &Error{Kind: KindConflict, Message: "could not allocate a unique session token"}
	ErrRateLimited           = &Error{Kind: KindRateLimited, Message: "too many failed login attempts, try again later"}
)

func invalidArgument(msg string) error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

func forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// unavailable wraps a storage or signing failure.
func unavailable(err error) error {
	return &Error{Kind: KindUnavailable, Message: "service temporarily unavailable", Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
