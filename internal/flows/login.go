package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureNotReady
	LoginFailureRateLimited
	LoginFailureLocked
	LoginFailureGuardUnavailable
	LoginFailureInvalidCredentials
	LoginFailureUserStore
	LoginFailureIssue
	LoginFailurePersist
)

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure    LoginFailureKind
	Err        error
	User       UserRecord
	Pair       IssuedPair
	RetryAfter time.Duration
	// Failures is the window failure count after this attempt (failure path only).
	Failures int64
	// LockTriggered is set on the attempt that reached the threshold.
	LockTriggered bool
	Rehashed      bool
}

// LoginGuard is the brute-force guard seen by the login flow.
type LoginGuard interface {
	EnsureNotLocked(ctx context.Context, username, ip string) (limiters.LockStatus, error)
	RegisterFailure(ctx context.Context, username, ip string) (int64, error)
	Clear(ctx context.Context, username, ip string) error
	MaxFailures() int
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string
	CheckRate           func(ctx context.Context, identity string) error
	Guard               LoginGuard

	FindUser     func(ctx context.Context, username string) (UserRecord, error)
	UserNotFound error

	VerifyPassword func(password, hash string) (bool, error)
	// DummyHash is verified when the username is unknown so both paths do the
	// same hashing work.
	DummyHash string

	UpgradeOnLogin     bool
	NeedsUpgrade       func(hash string) (bool, error)
	HashPassword       func(password string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID int64, hash string) error

	IssuePair   func(UserRecord) (IssuedPair, error)
	SaveRefresh func(ctx context.Context, record RefreshRecord) error

	Warn func(string, ...any)
}

// RunLogin executes: rate limit, lock check, credential check, guard
// bookkeeping, token issuance and refresh-record persistence.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.FindUser == nil || deps.VerifyPassword == nil || deps.IssuePair == nil || deps.SaveRefresh == nil {
		return LoginResult{Failure: LoginFailureNotReady}
	}

	ip := deps.ClientIPFromContext(ctx)
	username = limiters.NormalizeUsername(username)

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, ip); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}

	if deps.Guard != nil {
		status, err := deps.Guard.EnsureNotLocked(ctx, username, ip)
		if err != nil {
			return LoginResult{Failure: LoginFailureGuardUnavailable, Err: err}
		}
		if status.Locked {
			return LoginResult{Failure: LoginFailureLocked, RetryAfter: status.RetryAfter}
		}
	}

	user, err := deps.FindUser(ctx, username)
	known := err == nil
	if err != nil && (deps.UserNotFound == nil || !errors.Is(err, deps.UserNotFound)) {
		return LoginResult{Failure: LoginFailureUserStore, Err: err}
	}

	var ok bool
	if known {
		ok, err = deps.VerifyPassword(password, user.PasswordHash)
		if err != nil {
			// An unreadable stored hash must look like a wrong password and
			// still count toward the lock.
			deps.Warn("goGuard: stored password hash unusable", "user_id", user.ID, "error", err)
			ok = false
		}
	} else if deps.DummyHash != "" {
		_, _ = deps.VerifyPassword(password, deps.DummyHash)
	}

	if !ok {
		res := LoginResult{Failure: LoginFailureInvalidCredentials, User: user}
		if deps.Guard != nil {
			count, err := deps.Guard.RegisterFailure(ctx, username, ip)
			if err != nil {
				return LoginResult{Failure: LoginFailureGuardUnavailable, Err: err, User: user}
			}
			res.Failures = count
			res.LockTriggered = count == int64(deps.Guard.MaxFailures())
		}
		return res
	}

	if deps.Guard != nil {
		if err := deps.Guard.Clear(ctx, username, ip); err != nil {
			deps.Warn("goGuard: clear brute-force state failed", "user_id", user.ID, "error", err)
		}
	}

	rehashed := false
	if deps.UpgradeOnLogin && deps.NeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		rehashed = upgradeHash(ctx, user, password, deps)
	}

	pair, err := deps.IssuePair(user)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, User: user}
	}
	if err := deps.SaveRefresh(ctx, pair.Record); err != nil {
		return LoginResult{Failure: LoginFailurePersist, Err: err, User: user}
	}

	return LoginResult{User: user, Pair: pair, Rehashed: rehashed}
}

// upgradeHash re-hashes a stored hash produced with weaker parameters or a
// legacy algorithm. Failures are logged and never fail the login.
func upgradeHash(ctx context.Context, user UserRecord, password string, deps LoginDeps) bool {
	needs, err := deps.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return false
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("goGuard: password rehash failed", "user_id", user.ID, "error", err)
		return false
	}
	if err := deps.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		deps.Warn("goGuard: password hash update failed", "user_id", user.ID, "error", err)
		return false
	}
	return true
}
