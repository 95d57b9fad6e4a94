package goGuard

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidToken covers bad signatures, wrong algorithms and malformed payloads.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for a correctly signed token past its exp.
	ErrExpiredToken = errors.New("token expired")
	// ErrWrongTokenType is returned when an access token is presented where a
	// refresh token is required, or the reverse.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrRevokedOrUnknown is returned when a refresh token has no live record.
	ErrRevokedOrUnknown = errors.New("refresh token revoked or unknown")
	// ErrUserNotFound is returned when a token subject or username has no user.
	ErrUserNotFound = errors.New("user not found")
	// ErrLocked matches *LockedError.
	ErrLocked = errors.New("too many login attempts")
	// ErrRateLimited matches *RateLimitError.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrStoreUnavailable wraps counter-store and persistent-store failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEngineNotReady     = errors.New("engine not initialized")
)

// LockedError is returned by Login while a (username, ip) pair is locked out.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrLocked, e.RetryAfter)
}

func (e *LockedError) Is(target error) bool { return target == ErrLocked }

// RateLimitError describes a fixed-window rejection.
type RateLimitError struct {
	Scope      string
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: %d/%ds (%s)", ErrRateLimited, e.Limit, int64(e.Window/time.Second), e.Scope)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// ErrorKind is the closed set of failure classes a transport maps to status codes.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidToken
	KindExpiredToken
	KindWrongTokenType
	KindRevokedOrUnknown
	KindUserNotFound
	KindInvalidCredentials
	KindForbidden
	KindLocked
	KindRateLimited
	KindUsernameTaken
	KindInvalidInput
	KindStoreUnavailable
	KindInternal
)

var kindNames = [...]string{
	KindNone:               "none",
	KindInvalidToken:       "invalid_token",
	KindExpiredToken:       "expired_token",
	KindWrongTokenType:     "wrong_token_type",
	KindRevokedOrUnknown:   "revoked_or_unknown",
	KindUserNotFound:       "user_not_found",
	KindInvalidCredentials: "invalid_credentials",
	KindForbidden:          "forbidden",
	KindLocked:             "locked",
	KindRateLimited:        "rate_limited",
	KindUsernameTaken:      "username_taken",
	KindInvalidInput:       "invalid_input",
	KindStoreUnavailable:   "store_unavailable",
	KindInternal:           "internal",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// KindOf classifies err. Anything it does not recognise is KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrLocked):
		return KindLocked
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrExpiredToken):
		return KindExpiredToken
	case errors.Is(err, ErrInvalidToken):
		return KindInvalidToken
	case errors.Is(err, ErrWrongTokenType):
		return KindWrongTokenType
	case errors.Is(err, ErrRevokedOrUnknown):
		return KindRevokedOrUnknown
	case errors.Is(err, ErrUserNotFound):
		return KindUserNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrUsernameTaken):
		return KindUsernameTaken
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// RetryAfter extracts the wait from a lockout or rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var locked *LockedError
	if errors.As(err, &locked) {
		return locked.RetryAfter, true
	}
	var limited *RateLimitError
	if errors.As(err, &limited) {
		return limited.RetryAfter, true
	}
	return 0, false
}

func unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
