package goGuard

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/password"
)

// Register creates a user with the default role. The username is trimmed and
// lowercased before validation and storage.
func (e *Engine) Register(ctx context.Context, username, pass string) (*User, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Register(ctx, username, pass)
	switch res.Failure {
	case flows.RegisterFailureNone:
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, auditFields{
			UserID:   strconv.FormatInt(res.User.ID, 10),
			Username: res.User.Username,
		}, nil, nil)
		return userFromRecord(res.User), nil
	case flows.RegisterFailureNotReady:
		return nil, ErrEngineNotReady
	case flows.RegisterFailureRateLimited:
		e.metricInc(MetricRegisterRateLimited)
		return nil, res.Err
	}

	var err error
	switch res.Failure {
	case flows.RegisterFailureInvalidUsername, flows.RegisterFailureInvalidPassword:
		err = fmt.Errorf("%w: %v", ErrInvalidInput, res.Err)
	case flows.RegisterFailureHash:
		if errors.Is(res.Err, password.ErrTooLong) || errors.Is(res.Err, password.ErrEmptyPassword) {
			err = fmt.Errorf("%w: %v", ErrInvalidInput, res.Err)
		} else {
			err = fmt.Errorf("goGuard: hash password: %w", res.Err)
		}
	case flows.RegisterFailureDuplicate:
		e.metricInc(MetricRegisterDuplicate)
		err = ErrUsernameTaken
	default:
		e.metricInc(MetricStoreUnavailable)
		err = unavailable(res.Err)
	}

	e.emitAudit(ctx, auditEventRegisterFailure, false, auditFields{}, err, nil)
	return nil, err
}

// Login checks credentials and returns a fresh token pair. The order is:
// login rate limit by client IP, brute-force lock check, credential check,
// then guard bookkeeping. A locked pair gets *LockedError without the
// password being examined.
func (e *Engine) Login(ctx context.Context, username, pass string) (*TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Login(ctx, username, pass)
	fields := auditFields{Username: res.User.Username}
	if res.User.ID != 0 {
		fields.UserID = strconv.FormatInt(res.User.ID, 10)
	}

	switch res.Failure {
	case flows.LoginFailureNone:
		fields.JTI = res.Pair.Record.JTI
		e.metricInc(MetricLoginSuccess)
		if res.Rehashed {
			e.metricInc(MetricPasswordRehash)
			e.emitAudit(ctx, auditEventPasswordRehash, true, fields, nil, nil)
		}
		e.emitAudit(ctx, auditEventLoginSuccess, true, fields, nil, nil)
		return tokenPair(res.Pair), nil

	case flows.LoginFailureNotReady:
		return nil, ErrEngineNotReady

	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		return nil, res.Err

	case flows.LoginFailureLocked:
		e.metricInc(MetricLoginLocked)
		err := &LockedError{RetryAfter: res.RetryAfter}
		e.emitAudit(ctx, auditEventLoginLocked, false, fields, err, nil)
		return nil, err

	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		if res.LockTriggered {
			e.metricInc(MetricLockoutTriggered)
			e.emitAudit(ctx, auditEventLockoutTriggered, false, fields, ErrLocked, nil)
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, fields, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"failures": strconv.FormatInt(res.Failures, 10),
			}
		})
		return nil, ErrInvalidCredentials

	case flows.LoginFailureGuardUnavailable:
		e.warn(ctx, "goGuard: brute-force guard unavailable, rejecting login", "error", res.Err)
		fallthrough
	case flows.LoginFailureUserStore, flows.LoginFailurePersist:
		e.metricInc(MetricStoreUnavailable)
		err := unavailable(res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, fields, err, nil)
		return nil, err

	default:
		e.metricInc(MetricLoginFailure)
		err := fmt.Errorf("goGuard: login: %w", res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, fields, err, nil)
		return nil, err
	}
}
