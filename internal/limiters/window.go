package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
)

// ErrInvalidRule is returned for rules with an empty name or non-positive bounds.
var ErrInvalidRule = errors.New("invalid rate limit rule")

// Rule is one protected scope.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Validate checks rule bounds.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" || r.Limit <= 0 || r.Window < time.Second {
		return ErrInvalidRule
	}
	return nil
}

// Decision is the outcome of one [FixedWindow.Check].
type Decision struct {
	Allowed bool
	Count   int64
	// RetryAfter is set on rejection and is never below one second.
	RetryAfter time.Duration
}

// FixedWindow counts requests per (rule, identity) in discrete windows.
type FixedWindow struct {
	counter rate.Counter
}

// NewFixedWindow returns a limiter backed by counter.
func NewFixedWindow(counter rate.Counter) *FixedWindow {
	return &FixedWindow{counter: counter}
}

// Check counts this request and rejects it when the window total exceeds
// rule.Limit. The rejected request is counted too.
func (l *FixedWindow) Check(ctx context.Context, rule Rule, identity string) (Decision, error) {
	if l == nil || l.counter == nil {
		return Decision{Allowed: true}, nil
	}
	if err := rule.Validate(); err != nil {
		return Decision{}, err
	}
	if identity == "" {
		identity = "unknown"
	}

	key := WindowKey(rule.Name, identity)
	count, err := l.counter.IncrementWithExpiry(ctx, key, rule.Window)
	if err != nil {
		return Decision{}, err
	}
	if count <= int64(rule.Limit) {
		return Decision{Allowed: true, Count: count}, nil
	}

	ttl, err := l.counter.RemainingTTL(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:    false,
		Count:      count,
		RetryAfter: floorSecond(ttl),
	}, nil
}

// WindowKey builds the counter key for a scope and identity.
func WindowKey(scope, identity string) string {
	return "rl:" + scope + ":" + identity
}

// floorSecond converts a RemainingTTL reply into a wait of at least one second.
// The sentinels for missing or persistent keys also map to one second.
func floorSecond(ttl int64) time.Duration {
	if ttl < 1 {
		return time.Second
	}
	return time.Duration(ttl) * time.Second
}
