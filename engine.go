package goGuard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/internal/metrics"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/jwt"
)

// Engine issues and verifies tokens and enforces rate limits and login
// lockouts. Build one with [Builder]; it is safe for concurrent use.
type Engine struct {
	config     Config
	counter    rate.Counter
	window     *limiters.FixedWindow
	guard      *limiters.BruteForce
	jwtManager *jwt.Manager
	users      UserStore
	refresh    RefreshTokenStore
	hasher     PasswordHasher
	dummyHash  string
	audit      *audit.Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
	flows      flows.Service
}

// Close drains pending audit events. The engine does not own the Redis client
// or the stores; close those separately.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Health pings the counter store and every store that implements [Pinger].
// The returned error wraps ErrStoreUnavailable and names each failing backend.
func (e *Engine) Health(ctx context.Context) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	res := e.flows.Health(ctx)
	if res.Healthy {
		return nil
	}

	names := make([]string, 0, len(res.Failures))
	for name := range res.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+res.Failures[name].Error())
	}
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, strings.Join(parts, "; "))
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) warn(ctx context.Context, msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	if id := requestIDFromContext(ctx); id != "" {
		args = append(args, "request_id", id)
	}
	e.logger.WarnContext(ctx, msg, args...)
}

func (e *Engine) initFlows() {
	warn := func(msg string, args ...any) { e.warn(context.Background(), msg, args...) }
	refreshStore := refreshStoreAdapter{store: e.refresh}

	var needsUpgrade func(string) (bool, error)
	if up, ok := e.hasher.(PasswordUpgrader); ok {
		needsUpgrade = up.NeedsUpgrade
	}

	healthChecks := []flows.HealthCheck{{Name: "counter", Ping: e.counter.Ping}}
	if p, ok := e.users.(Pinger); ok {
		healthChecks = append(healthChecks, flows.HealthCheck{Name: "users", Ping: p.Ping})
	}
	if p, ok := e.refresh.(Pinger); ok {
		healthChecks = append(healthChecks, flows.HealthCheck{Name: "refresh_tokens", Ping: p.Ping})
	}

	e.flows = flows.New(flows.Deps{
		Login: flows.LoginDeps{
			ClientIPFromContext: clientIPFromContext,
			CheckRate:           e.scopeChecker(ScopeLogin),
			Guard:               e.guard,
			FindUser:            e.findUserByUsername,
			UserNotFound:        ErrUserNotFound,
			VerifyPassword:      e.hasher.Verify,
			DummyHash:           e.dummyHash,
			UpgradeOnLogin:      e.config.Password.UpgradeOnLogin,
			NeedsUpgrade:        needsUpgrade,
			HashPassword:        e.hasher.Hash,
			UpdatePasswordHash:  e.users.UpdatePasswordHash,
			IssuePair:           e.issuePair,
			SaveRefresh: func(ctx context.Context, r flows.RefreshRecord) error {
				return e.refresh.CreateRefreshToken(ctx, refreshRecordFromFlow(r))
			},
			Warn: warn,
		},
		Refresh: flows.RefreshDeps{
			ClientIPFromContext: clientIPFromContext,
			CheckRate:           e.scopeChecker(ScopeRefresh),
			ParseToken:          e.jwtManager.Parse,
			FindUserByID:        e.findUserByID,
			IssuePair:           e.issuePair,
			Store:               refreshStore,
			RevokeFamilyOnReuse: e.config.Refresh.RevokeFamilyOnReuse,
			Warn:                warn,
			UserNotFound:        ErrUserNotFound,
			RevokedOrUnknown:    ErrRevokedOrUnknown,
		},
		Logout: flows.LogoutDeps{
			ParseIgnoringExpiry: e.jwtManager.ParseIgnoringExpiry,
			Revoke:              e.refresh.RevokeRefreshToken,
			RevokeAllForUser:    e.refresh.RevokeAllForUser,
		},
		Register: flows.RegisterDeps{
			UsernameMin:         e.config.Account.UsernameMinLength,
			UsernameMax:         e.config.Account.UsernameMaxLength,
			PasswordMin:         e.config.Account.PasswordMinLength,
			PasswordMax:         e.config.Account.PasswordMaxLength,
			DefaultRole:         string(e.config.Account.DefaultRole),
			ClientIPFromContext: clientIPFromContext,
			CheckRate:           e.scopeChecker(ScopeRegister),
			HashPassword:        e.hasher.Hash,
			CreateUser: func(ctx context.Context, username, hash, role string) (flows.UserRecord, error) {
				u, err := e.users.CreateUser(ctx, username, hash, Role(role))
				if err != nil {
					return flows.UserRecord{}, err
				}
				return userRecord(u), nil
			},
			UsernameTaken: ErrUsernameTaken,
		},
		Validate: flows.ValidateDeps{
			ParseToken:   e.jwtManager.Parse,
			FindUserByID: e.findUserByID,
			UserNotFound: ErrUserNotFound,
		},
		Health: flows.HealthDeps{
			Checks: healthChecks,
			Now:    e.now,
		},
	})
}

func (e *Engine) findUserByUsername(ctx context.Context, username string) (flows.UserRecord, error) {
	u, err := e.users.GetUserByUsername(ctx, username)
	if err != nil {
		return flows.UserRecord{}, err
	}
	return userRecord(u), nil
}

func (e *Engine) findUserByID(ctx context.Context, id int64) (flows.UserRecord, error) {
	u, err := e.users.GetUserByID(ctx, id)
	if err != nil {
		return flows.UserRecord{}, err
	}
	return userRecord(u), nil
}

// issuePair signs an access and a refresh token for u. Nothing is persisted.
func (e *Engine) issuePair(u flows.UserRecord) (flows.IssuedPair, error) {
	sub := strconv.FormatInt(u.ID, 10)
	access, ac, err := e.jwtManager.IssueAccess(sub, u.Role)
	if err != nil {
		return flows.IssuedPair{}, err
	}
	refresh, rc, err := e.jwtManager.IssueRefresh(sub)
	if err != nil {
		return flows.IssuedPair{}, err
	}
	return flows.IssuedPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  ac.ExpiresAt.Time,
		RefreshExpiresAt: rc.ExpiresAt.Time,
		Record: flows.RefreshRecord{
			JTI:       rc.ID,
			UserID:    u.ID,
			ExpiresAt: rc.ExpiresAt.Time,
			CreatedAt: rc.IssuedAt.Time,
		},
	}, nil
}

func tokenPair(p flows.IssuedPair) *TokenPair {
	return &TokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "bearer",
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

func userRecord(u *User) flows.UserRecord {
	if u == nil {
		return flows.UserRecord{}
	}
	return flows.UserRecord{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

func userFromRecord(r flows.UserRecord) *User {
	return &User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         Role(r.Role),
		CreatedAt:    r.CreatedAt,
	}
}

func refreshRecordFromFlow(r flows.RefreshRecord) RefreshTokenRecord {
	return RefreshTokenRecord{
		JTI:       r.JTI,
		UserID:    r.UserID,
		ExpiresAt: r.ExpiresAt,
		Revoked:   r.Revoked,
		CreatedAt: r.CreatedAt,
	}
}

type refreshStoreAdapter struct {
	store RefreshTokenStore
}

func (a refreshStoreAdapter) Rotate(ctx context.Context, oldJTI string, next flows.RefreshRecord) error {
	return a.store.RotateRefreshToken(ctx, oldJTI, refreshRecordFromFlow(next))
}

func (a refreshStoreAdapter) Get(ctx context.Context, jti string) (flows.RefreshRecord, error) {
	rec, err := a.store.GetRefreshToken(ctx, jti)
	if err != nil {
		return flows.RefreshRecord{}, err
	}
	if rec == nil {
		return flows.RefreshRecord{}, ErrRevokedOrUnknown
	}
	return flows.RefreshRecord{
		JTI:       rec.JTI,
		UserID:    rec.UserID,
		ExpiresAt: rec.ExpiresAt,
		Revoked:   rec.Revoked,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (a refreshStoreAdapter) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	return a.store.RevokeAllForUser(ctx, userID)
}

// tokenError maps jwt package errors onto the public sentinels.
func tokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpiredToken
	}
	return ErrInvalidToken
}
