package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T) (*rate.RedisCounter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rate.NewRedisCounter(rdb, rate.Options{}), mr
}

type downCounter struct{}

func (downCounter) IncrementWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, rate.ErrUnavailable
}
func (downCounter) RemainingTTL(context.Context, string) (int64, error) {
	return 0, rate.ErrUnavailable
}
func (downCounter) SetLock(context.Context, string, time.Duration) error { return rate.ErrUnavailable }
func (downCounter) Exists(context.Context, string) (bool, error)         { return false, rate.ErrUnavailable }
func (downCounter) Delete(context.Context, ...string) error              { return rate.ErrUnavailable }
func (downCounter) Ping(context.Context) error                           { return rate.ErrUnavailable }

func mustCheck(t *testing.T, l *FixedWindow, rule Rule, identity string) Decision {
	t.Helper()
	d, err := l.Check(context.Background(), rule, identity)
	if err != nil {
		t.Fatalf("check %s: %v", identity, err)
	}
	return d
}

func TestFixedWindowRejectsSixthCallThenResets(t *testing.T) {
	counter, mr := newLimiterTest(t)
	l := NewFixedWindow(counter)
	rule := Rule{Name: "ping", Limit: 5, Window: 10 * time.Second}

	for i := 1; i <= 5; i++ {
		d := mustCheck(t, l, rule, "1.2.3.4")
		if !d.Allowed || d.Count != int64(i) {
			t.Fatalf("call %d: allowed=%v count=%d", i, d.Allowed, d.Count)
		}
	}

	mr.FastForward(3 * time.Second)
	d := mustCheck(t, l, rule, "1.2.3.4")
	if d.Allowed {
		t.Fatal("sixth call must be rejected")
	}
	if d.Count != 6 {
		t.Fatalf("count = %d, want 6", d.Count)
	}
	if d.RetryAfter != 7*time.Second {
		t.Fatalf("retry after = %s, want 7s", d.RetryAfter)
	}
	if !mr.Exists("rl:ping:1.2.3.4") {
		t.Fatal("expected rl:ping:1.2.3.4 key")
	}

	mr.FastForward(8 * time.Second)
	d = mustCheck(t, l, rule, "1.2.3.4")
	if !d.Allowed || d.Count != 1 {
		t.Fatalf("after window: allowed=%v count=%d", d.Allowed, d.Count)
	}
}

func TestFixedWindowIdentitiesAreIndependent(t *testing.T) {
	counter, _ := newLimiterTest(t)
	l := NewFixedWindow(counter)
	rule := Rule{Name: "login", Limit: 1, Window: time.Minute}

	if !mustCheck(t, l, rule, "a").Allowed {
		t.Fatal("first call for a must be allowed")
	}
	if !mustCheck(t, l, rule, "b").Allowed {
		t.Fatal("first call for b must be allowed")
	}
	if mustCheck(t, l, rule, "a").Allowed {
		t.Fatal("second call for a must be rejected")
	}
}

func TestFixedWindowRetryAfterFloor(t *testing.T) {
	counter, mr := newLimiterTest(t)
	l := NewFixedWindow(counter)
	rule := Rule{Name: "x", Limit: 1, Window: 2 * time.Second}

	mustCheck(t, l, rule, "id")
	mr.FastForward(1500 * time.Millisecond)

	d := mustCheck(t, l, rule, "id")
	if d.Allowed {
		t.Fatal("expected rejection")
	}
	if d.RetryAfter < time.Second {
		t.Fatalf("retry after = %s, want at least 1s", d.RetryAfter)
	}
}

func TestFixedWindowSurfacesUnavailable(t *testing.T) {
	l := NewFixedWindow(downCounter{})
	_, err := l.Check(context.Background(), Rule{Name: "x", Limit: 1, Window: time.Second}, "id")
	if !errors.Is(err, rate.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFixedWindowRejectsBadRule(t *testing.T) {
	counter, _ := newLimiterTest(t)
	l := NewFixedWindow(counter)

	for _, rule := range []Rule{
		{Name: "", Limit: 1, Window: time.Second},
		{Name: "x", Limit: 0, Window: time.Second},
	} {
		if _, err := l.Check(context.Background(), rule, "id"); !errors.Is(err, ErrInvalidRule) {
			t.Fatalf("rule %+v: expected ErrInvalidRule, got %v", rule, err)
		}
	}
}

func TestNilFixedWindowAllows(t *testing.T) {
	var l *FixedWindow
	d, err := l.Check(context.Background(), Rule{}, "id")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !d.Allowed {
		t.Fatal("nil limiter must allow")
	}
}

func newGuard(t *testing.T, counter rate.Counter) *BruteForce {
	t.Helper()
	g, err := NewBruteForce(counter, BruteForceConfig{
		Prefix:       "login",
		MaxFailures:  5,
		Window:       120 * time.Second,
		LockDuration: 60 * time.Second,
	})
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	return g
}

func mustFail(t *testing.T, g *BruteForce, username, ip string) int64 {
	t.Helper()
	n, err := g.RegisterFailure(context.Background(), username, ip)
	if err != nil {
		t.Fatalf("register failure %s/%s: %v", username, ip, err)
	}
	return n
}

func mustStatus(t *testing.T, g *BruteForce, username, ip string) LockStatus {
	t.Helper()
	st, err := g.EnsureNotLocked(context.Background(), username, ip)
	if err != nil {
		t.Fatalf("lock check %s/%s: %v", username, ip, err)
	}
	return st
}

func TestBruteForceLocksAtThresholdAndExpires(t *testing.T) {
	counter, mr := newLimiterTest(t)
	g := newGuard(t, counter)

	for i := 1; i <= 4; i++ {
		if n := mustFail(t, g, "alice", "10.0.0.1"); n != int64(i) {
			t.Fatalf("failure %d counted as %d", i, n)
		}
		if mustStatus(t, g, "alice", "10.0.0.1").Locked {
			t.Fatalf("must not lock below threshold (failure %d)", i)
		}
	}

	if n := mustFail(t, g, "alice", "10.0.0.1"); n != 5 {
		t.Fatalf("fifth failure counted as %d", n)
	}

	st := mustStatus(t, g, "alice", "10.0.0.1")
	if !st.Locked {
		t.Fatal("expected lock at threshold")
	}
	if st.RetryAfter != 60*time.Second {
		t.Fatalf("retry after = %s, want 60s", st.RetryAfter)
	}

	mr.FastForward(61 * time.Second)
	if mustStatus(t, g, "alice", "10.0.0.1").Locked {
		t.Fatal("lock must expire")
	}
}

func TestBruteForceLockIndependentOfFailureWindow(t *testing.T) {
	counter, mr := newLimiterTest(t)
	g, err := NewBruteForce(counter, BruteForceConfig{
		Prefix:       "login",
		MaxFailures:  2,
		Window:       5 * time.Second,
		LockDuration: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	mustFail(t, g, "bob", "ip")
	mustFail(t, g, "bob", "ip")

	// The failure counter expires well before the lock does.
	mr.FastForward(6 * time.Second)
	if mr.Exists("bf:login:fail:bob:ip") {
		t.Fatal("failure counter should have expired")
	}

	st := mustStatus(t, g, "bob", "ip")
	if !st.Locked {
		t.Fatal("lock must outlive the failure window")
	}
	if st.RetryAfter != 24*time.Second {
		t.Fatalf("retry after = %s, want 24s", st.RetryAfter)
	}
}

func TestBruteForceClearUnlocksImmediately(t *testing.T) {
	counter, _ := newLimiterTest(t)
	g := newGuard(t, counter)

	for i := 0; i < 7; i++ {
		mustFail(t, g, "alice", "10.0.0.1")
	}
	if !mustStatus(t, g, "alice", "10.0.0.1").Locked {
		t.Fatal("expected lock")
	}

	if err := g.Clear(context.Background(), "alice", "10.0.0.1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if mustStatus(t, g, "alice", "10.0.0.1").Locked {
		t.Fatal("clear must unlock")
	}
	if n := mustFail(t, g, "alice", "10.0.0.1"); n != 1 {
		t.Fatalf("failure counter restarts after clear, got %d", n)
	}
}

func TestBruteForceUsernameCaseNormalized(t *testing.T) {
	counter, mr := newLimiterTest(t)
	g := newGuard(t, counter)

	for _, u := range []string{"Alice", "ALICE", " alice", "aLiCe", "alice"} {
		mustFail(t, g, u, "10.0.0.1")
	}

	if !mustStatus(t, g, "alice", "10.0.0.1").Locked {
		t.Fatal("case variants must share one counter")
	}
	if !mr.Exists("bf:login:lock:alice:10.0.0.1") {
		t.Fatal("expected normalized lock key")
	}
}

func TestBruteForceKeyedByIP(t *testing.T) {
	counter, _ := newLimiterTest(t)
	g := newGuard(t, counter)

	for i := 0; i < 5; i++ {
		mustFail(t, g, "alice", "10.0.0.1")
	}

	if mustStatus(t, g, "alice", "10.0.0.2").Locked {
		t.Fatal("lock on one IP must not apply to another")
	}
}

func TestBruteForceSurfacesUnavailable(t *testing.T) {
	g := newGuard(t, downCounter{})
	ctx := context.Background()

	if _, err := g.EnsureNotLocked(ctx, "alice", "ip"); !errors.Is(err, rate.ErrUnavailable) {
		t.Fatalf("lock check: expected ErrUnavailable, got %v", err)
	}
	if _, err := g.RegisterFailure(ctx, "alice", "ip"); !errors.Is(err, rate.ErrUnavailable) {
		t.Fatalf("register failure: expected ErrUnavailable, got %v", err)
	}
	if err := g.Clear(ctx, "alice", "ip"); !errors.Is(err, rate.ErrUnavailable) {
		t.Fatalf("clear: expected ErrUnavailable, got %v", err)
	}
}

func TestNewBruteForceValidates(t *testing.T) {
	for _, cfg := range []BruteForceConfig{
		{Prefix: "x", MaxFailures: 0, Window: time.Second, LockDuration: time.Second},
		{Prefix: "", MaxFailures: 1, Window: time.Second, LockDuration: time.Second},
	} {
		if _, err := NewBruteForce(downCounter{}, cfg); !errors.Is(err, ErrInvalidBruteForceConfig) {
			t.Fatalf("config %+v: expected ErrInvalidBruteForceConfig, got %v", cfg, err)
		}
	}
}
