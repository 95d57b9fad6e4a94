package goGuard

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/password"
)

func TestRegisterNormalizesAndAssignsDefaultRole(t *testing.T) {
	env := newTestEnv(t, testConfig())

	u, err := env.engine.Register(context.Background(), "  Alice ", testPassword)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if u.ID <= 0 {
		t.Fatalf("expected positive id, got %d", u.ID)
	}
	if u.Username != "alice" {
		t.Fatalf("expected normalized username, got %q", u.Username)
	}
	if u.Role != RoleUser {
		t.Fatalf("expected role user, got %q", u.Role)
	}
	if u.PasswordHash == testPassword || u.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "alice")

	_, err := env.engine.Register(context.Background(), "ALICE", "another-password")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRegisterDuplicate]; got != 1 {
		t.Fatalf("expected duplicate metric 1, got %d", got)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, testConfig())

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"short username", "al", testPassword},
		{"long username", strings.Repeat("a", 51), testPassword},
		{"whitespace in username", "ali ce", testPassword},
		{"short password", "alice", "12345"},
		{"long password", "alice", strings.Repeat("p", 73)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.Register(context.Background(), tc.username, tc.password)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestLoginSuccessReturnsPair(t *testing.T) {
	env := newTestEnv(t, testConfig())
	u := env.register(t, "alice")

	pair := env.login(t, "Alice")
	if pair.TokenType != "bearer" {
		t.Fatalf("expected bearer, got %q", pair.TokenType)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.AccessToken == pair.RefreshToken {
		t.Fatal("expected two distinct tokens")
	}
	if !pair.RefreshExpiresAt.After(pair.AccessExpiresAt) {
		t.Fatal("refresh token must outlive access token")
	}

	live := env.store.liveTokens(u.ID)
	if len(live) != 1 {
		t.Fatalf("expected one stored refresh token, got %d", len(live))
	}
	claims, err := env.engine.Verify(pair.RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if claims.ID != live[0] {
		t.Fatalf("stored jti %q does not match token jti %q", live[0], claims.ID)
	}
}

func TestLoginWrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "alice")

	_, errWrong := env.engine.Login(context.Background(), "alice", "not-the-password")
	_, errUnknown := env.engine.Login(context.Background(), "bob", "not-the-password")
	if !errors.Is(errWrong, ErrInvalidCredentials) || !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", errWrong, errUnknown)
	}
	if errWrong.Error() != errUnknown.Error() {
		t.Fatalf("error text must not reveal which part was wrong: %q vs %q", errWrong, errUnknown)
	}
}

func TestLoginUnreadableStoredHashLooksLikeWrongPassword(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := WithClientIP(context.Background(), "10.0.0.2")
	if _, err := env.store.CreateUser(ctx, "legacy", "pbkdf2_sha256$260000$abc$def", RoleUser); err != nil {
		t.Fatalf("seed legacy user: %v", err)
	}

	_, errLegacy := env.engine.Login(ctx, "legacy", "not-the-password")
	_, errUnknown := env.engine.Login(ctx, "nobody", "not-the-password")
	if !errors.Is(errLegacy, ErrInvalidCredentials) || KindOf(errLegacy) != KindOf(errUnknown) {
		t.Fatalf("expected matching invalid credentials, got %v and %v", errLegacy, errUnknown)
	}

	for i := 0; i < 4; i++ {
		if _, err := env.engine.Login(ctx, "legacy", "not-the-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+2, err)
		}
	}
	_, err := env.engine.Login(ctx, "legacy", "not-the-password")
	if KindOf(err) != KindLocked {
		t.Fatalf("expected the account to lock after repeated failures, got %v", err)
	}
}

func TestLoginLockoutAfterMaxFailures(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "alice")
	ctx := WithClientIP(context.Background(), "10.0.0.1")

	for i := 0; i < 5; i++ {
		if _, err := env.engine.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := env.engine.Login(ctx, "alice", testPassword)
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected *LockedError even with correct password, got %v", err)
	}
	if locked.RetryAfter <= 0 || locked.RetryAfter > 60*time.Second {
		t.Fatalf("unexpected retry after %s", locked.RetryAfter)
	}
	if KindOf(err) != KindLocked {
		t.Fatalf("expected KindLocked, got %s", KindOf(err))
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricLockoutTriggered] != 1 {
		t.Fatalf("expected one lockout, got %d", snap.Counters[MetricLockoutTriggered])
	}
	if snap.Counters[MetricLoginLocked] != 1 {
		t.Fatalf("expected one locked rejection, got %d", snap.Counters[MetricLoginLocked])
	}
}

func TestLoginLockIsPerClientIP(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "alice")
	attacker := WithClientIP(context.Background(), "10.0.0.1")
	owner := WithClientIP(context.Background(), "10.0.0.2")

	for i := 0; i < 5; i++ {
		_, _ = env.engine.Login(attacker, "alice", "wrong-password")
	}
	if _, err := env.engine.Login(attacker, "alice", testPassword); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected attacker locked, got %v", err)
	}
	if _, err := env.engine.Login(owner, "alice", testPassword); err != nil {
		t.Fatalf("owner from another ip must not be locked: %v", err)
	}
}

func TestLoginLockExpires(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "alice")
	ctx := WithClientIP(context.Background(), "10.0.0.1")

	for i := 0; i < 5; i++ {
		_, _ = env.engine.Login(ctx, "alice", "wrong-password")
	}
	env.mr.FastForward(61 * time.Second)

	if _, err := env.engine.Login(ctx, "alice", testPassword); err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}
}

func TestLoginSuccessClearsFailures(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "alice")
	ctx := WithClientIP(context.Background(), "10.0.0.1")

	for i := 0; i < 4; i++ {
		_, _ = env.engine.Login(ctx, "alice", "wrong-password")
	}
	if _, err := env.engine.Login(ctx, "alice", testPassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	// Four more failures would lock if the earlier ones were still counted.
	for i := 0; i < 4; i++ {
		_, _ = env.engine.Login(ctx, "alice", "wrong-password")
	}
	if _, err := env.engine.Login(ctx, "alice", testPassword); err != nil {
		t.Fatalf("expected counter reset by success, got %v", err)
	}
}

func TestLoginUnknownUserCountsTowardsLock(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := WithClientIP(context.Background(), "10.0.0.1")

	for i := 0; i < 5; i++ {
		_, _ = env.engine.Login(ctx, "ghost", "whatever-password")
	}
	if _, err := env.engine.Login(ctx, "ghost", "whatever-password"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked for unknown user, got %v", err)
	}
}

func TestLoginRateLimitedPerIP(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Login = RateLimitRule{Limit: 3, Window: time.Minute}
	env := newTestEnv(t, cfg)
	env.register(t, "alice")
	ctx := WithClientIP(context.Background(), "10.0.0.9")

	for i := 0; i < 3; i++ {
		if _, err := env.engine.Login(ctx, "alice", testPassword); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	_, err := env.engine.Login(ctx, "alice", testPassword)
	var limited *RateLimitError
	if !errors.As(err, &limited) {
		t.Fatalf("expected *RateLimitError, got %v", err)
	}
	if limited.Scope != "login" || limited.Limit != 3 {
		t.Fatalf("unexpected rate limit error %+v", limited)
	}
	if ra, ok := RetryAfter(err); !ok || ra <= 0 || ra > time.Minute {
		t.Fatalf("unexpected retry after %s (%v)", ra, ok)
	}

	other := WithClientIP(context.Background(), "10.0.0.10")
	if _, err := env.engine.Login(other, "alice", testPassword); err != nil {
		t.Fatalf("other ip must not share the window: %v", err)
	}
}

func TestLoginGuardFailsClosedWhenCounterDown(t *testing.T) {
	env := newTestEnv(t, testConfig(), withCounter(downCounter{}))
	env.register(t, "alice")

	_, err := env.engine.Login(context.Background(), "alice", testPassword)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRateLimitFailOpen] == 0 {
		t.Fatal("expected the rate limiter to fail open before the guard rejected")
	}
	if snap.Counters[MetricLoginSuccess] != 0 {
		t.Fatal("login must not succeed without the guard")
	}
}

func TestRateLimitFailsClosedWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.FailOpen = false
	env := newTestEnv(t, cfg, withCounter(downCounter{}))

	_, err := env.engine.Register(context.Background(), "alice", testPassword)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if len(env.store.byName) != 0 {
		t.Fatal("user must not be created when the limiter fails closed")
	}
}

func TestLoginUserStoreDown(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.register(t, "alice")
	env.store.fail.Store(true)

	_, err := env.engine.Login(context.Background(), "alice", testPassword)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("store outage must not look like bad credentials")
	}
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	argon, err := password.NewArgon2(password.Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("argon2: %v", err)
	}
	legacy, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	multi, err := password.NewMulti(argon, legacy)
	if err != nil {
		t.Fatalf("multi: %v", err)
	}

	env := newTestEnv(t, testConfig(), withHasher(multi))
	oldHash, err := legacy.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := env.store.CreateUser(context.Background(), "alice", oldHash, RoleUser)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	env.login(t, "alice")

	stored, _ := env.store.GetUserByID(context.Background(), u.ID)
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Fatalf("expected argon2id rehash, got %q", stored.PasswordHash[:10])
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricPasswordRehash]; got != 1 {
		t.Fatalf("expected rehash metric 1, got %d", got)
	}

	// The upgraded hash still verifies.
	env.login(t, "alice")
}

func TestEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Login(context.Background(), "alice", testPassword); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.ResolveCurrentUser(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}
