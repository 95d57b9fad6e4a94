package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
)

// ErrInvalidBruteForceConfig is returned by NewBruteForce for unusable settings.
var ErrInvalidBruteForceConfig = errors.New("invalid brute-force configuration")

// BruteForceConfig holds the failure threshold and the two independent timers.
type BruteForceConfig struct {
	Prefix       string
	MaxFailures  int
	Window       time.Duration
	LockDuration time.Duration
}

// LockStatus reports whether a (username, ip) pair is locked.
type LockStatus struct {
	Locked     bool
	RetryAfter time.Duration
}

// BruteForce tracks failed logins per (username, ip). States move
// Clean -> Accumulating -> Locked and back to Clean on success or lock expiry.
type BruteForce struct {
	counter rate.Counter
	config  BruteForceConfig
}

// NewBruteForce validates cfg and returns a guard.
func NewBruteForce(counter rate.Counter, cfg BruteForceConfig) (*BruteForce, error) {
	cfg.Prefix = strings.TrimSpace(cfg.Prefix)
	if cfg.Prefix == "" || cfg.MaxFailures <= 0 || cfg.Window < time.Second || cfg.LockDuration < time.Second {
		return nil, ErrInvalidBruteForceConfig
	}
	return &BruteForce{counter: counter, config: cfg}, nil
}

// EnsureNotLocked must run before credentials are checked.
func (g *BruteForce) EnsureNotLocked(ctx context.Context, username, ip string) (LockStatus, error) {
	if g == nil || g.counter == nil {
		return LockStatus{}, nil
	}

	key := g.lockKey(username, ip)
	locked, err := g.counter.Exists(ctx, key)
	if err != nil {
		return LockStatus{}, err
	}
	if !locked {
		return LockStatus{}, nil
	}

	ttl, err := g.counter.RemainingTTL(ctx, key)
	if err != nil {
		return LockStatus{}, err
	}
	return LockStatus{Locked: true, RetryAfter: floorSecond(ttl)}, nil
}

// RegisterFailure counts one failed attempt and returns the window total. Once
// the total reaches MaxFailures the lock key is (re)written with LockDuration.
func (g *BruteForce) RegisterFailure(ctx context.Context, username, ip string) (int64, error) {
	if g == nil || g.counter == nil {
		return 0, nil
	}

	count, err := g.counter.IncrementWithExpiry(ctx, g.failKey(username, ip), g.config.Window)
	if err != nil {
		return 0, err
	}
	if count >= int64(g.config.MaxFailures) {
		if err := g.counter.SetLock(ctx, g.lockKey(username, ip), g.config.LockDuration); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Clear drops both the failure counter and the lock. Called once per
// successful authentication.
func (g *BruteForce) Clear(ctx context.Context, username, ip string) error {
	if g == nil || g.counter == nil {
		return nil
	}
	return g.counter.Delete(ctx, g.failKey(username, ip), g.lockKey(username, ip))
}

// MaxFailures returns the configured threshold.
func (g *BruteForce) MaxFailures() int {
	if g == nil {
		return 0
	}
	return g.config.MaxFailures
}

func (g *BruteForce) failKey(username, ip string) string {
	return "bf:" + g.config.Prefix + ":fail:" + NormalizeUsername(username) + ":" + normalizeIP(ip)
}

func (g *BruteForce) lockKey(username, ip string) string {
	return "bf:" + g.config.Prefix + ":lock:" + NormalizeUsername(username) + ":" + normalizeIP(ip)
}

// NormalizeUsername trims and lowercases so that "Alice" and "alice " share
// one failure budget.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "unknown"
	}
	return ip
}
