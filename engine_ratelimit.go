package goGuard

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/internal/rate"
)

// Scope names a rate-limited operation.
type Scope string

const (
	ScopeLogin    Scope = "login"
	ScopeRegister Scope = "register"
	ScopeRefresh  Scope = "refresh"
	// ScopeAPI is keyed by authenticated user id rather than client IP.
	ScopeAPI Scope = "api"
)

// CheckRateLimit counts one request for (scope, identity) and returns a
// *RateLimitError once the window limit is exceeded. Rejected requests are
// counted too.
//
// When the counter store is unreachable the request is admitted if
// RateLimit.FailOpen is set; otherwise the error wraps ErrStoreUnavailable.
func (e *Engine) CheckRateLimit(ctx context.Context, scope Scope, identity string) error {
	if e == nil || e.window == nil {
		return ErrEngineNotReady
	}
	if !e.config.RateLimit.Enabled {
		return nil
	}

	rule, ok := e.rule(scope)
	if !ok {
		return fmt.Errorf("%w: unknown rate limit scope %q", ErrInvalidInput, scope)
	}

	decision, err := e.window.Check(ctx, rule, identity)
	if err != nil {
		if !errors.Is(err, rate.ErrUnavailable) {
			return err
		}
		if e.config.RateLimit.FailOpen {
			e.metricInc(MetricRateLimitFailOpen)
			e.warn(ctx, "goGuard: rate limiter unavailable, admitting request", "scope", string(scope), "error", err)
			return nil
		}
		e.metricInc(MetricStoreUnavailable)
		return unavailable(err)
	}
	if decision.Allowed {
		return nil
	}

	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, auditFields{}, ErrRateLimited, func() map[string]string {
		return map[string]string{
			"scope": string(scope),
		}
	})
	return &RateLimitError{
		Scope:      string(scope),
		Limit:      rule.Limit,
		Window:     rule.Window,
		RetryAfter: decision.RetryAfter,
	}
}

func (e *Engine) rule(scope Scope) (limiters.Rule, bool) {
	var r RateLimitRule
	switch scope {
	case ScopeLogin:
		r = e.config.RateLimit.Login
	case ScopeRegister:
		r = e.config.RateLimit.Register
	case ScopeRefresh:
		r = e.config.RateLimit.Refresh
	case ScopeAPI:
		r = e.config.RateLimit.API
	default:
		return limiters.Rule{}, false
	}
	return limiters.Rule{Name: string(scope), Limit: r.Limit, Window: r.Window}, true
}

func (e *Engine) scopeChecker(scope Scope) func(context.Context, string) error {
	return func(ctx context.Context, identity string) error {
		return e.CheckRateLimit(ctx, scope, identity)
	}
}
