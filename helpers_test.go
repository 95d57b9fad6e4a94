package goGuard

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "alice12345"

// memStore is an in-memory UserStore and RefreshTokenStore.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]User
	byName map[string]int64
	tokens map[string]RefreshTokenRecord

	refreshCalls atomic.Int64
	fail         atomic.Bool
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[int64]User{},
		byName: map[string]int64{},
		tokens: map[string]RefreshTokenRecord{},
	}
}

var errStoreDown = errors.New("mem store down")

func (s *memStore) down() error {
	if s.fail.Load() {
		return errStoreDown
	}
	return nil
}

func (s *memStore) CreateUser(_ context.Context, username, hash string, role Role) (*User, error) {
	if err := s.down(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[username]; ok {
		return nil, ErrUsernameTaken
	}
	s.nextID++
	u := User{ID: s.nextID, Username: username, PasswordHash: hash, Role: role, CreatedAt: time.Now().UTC()}
	s.users[u.ID] = u
	s.byName[username] = u.ID
	return &u, nil
}

func (s *memStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	if err := s.down(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *memStore) GetUserByID(_ context.Context, id int64) (*User, error) {
	if err := s.down(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *memStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	if err := s.down(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

func (s *memStore) deleteUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		delete(s.byName, u.Username)
		delete(s.users, id)
	}
}

func (s *memStore) setRole(id int64, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.Role = role
	s.users[id] = u
}

func (s *memStore) CreateRefreshToken(_ context.Context, r RefreshTokenRecord) error {
	s.refreshCalls.Add(1)
	if err := s.down(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[r.JTI] = r
	return nil
}

func (s *memStore) GetRefreshToken(_ context.Context, jti string) (*RefreshTokenRecord, error) {
	s.refreshCalls.Add(1)
	if err := s.down(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tokens[jti]
	if !ok {
		return nil, ErrRevokedOrUnknown
	}
	return &r, nil
}

func (s *memStore) RotateRefreshToken(_ context.Context, oldJTI string, next RefreshTokenRecord) error {
	s.refreshCalls.Add(1)
	if err := s.down(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.tokens[oldJTI]
	if !ok || old.Revoked {
		return ErrRevokedOrUnknown
	}
	old.Revoked = true
	s.tokens[oldJTI] = old
	s.tokens[next.JTI] = next
	return nil
}

func (s *memStore) RevokeRefreshToken(_ context.Context, jti string) error {
	s.refreshCalls.Add(1)
	if err := s.down(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.tokens[jti]; ok {
		r.Revoked = true
		s.tokens[jti] = r
	}
	return nil
}

func (s *memStore) RevokeAllForUser(_ context.Context, userID int64) (int64, error) {
	s.refreshCalls.Add(1)
	if err := s.down(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for jti, r := range s.tokens {
		if r.UserID == userID && !r.Revoked {
			r.Revoked = true
			s.tokens[jti] = r
			n++
		}
	}
	return n, nil
}

func (s *memStore) Ping(context.Context) error {
	return s.down()
}

func (s *memStore) record(jti string) (RefreshTokenRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tokens[jti]
	return r, ok
}

func (s *memStore) liveTokens(userID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for jti, r := range s.tokens {
		if r.UserID == userID && !r.Revoked {
			out = append(out, jti)
		}
	}
	sort.Strings(out)
	return out
}

// downCounter fails every call the way RedisCounter does when Redis is gone.
type downCounter struct{}

var _ rate.Counter = downCounter{}

func (downCounter) IncrementWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, rate.ErrUnavailable
}
func (downCounter) RemainingTTL(context.Context, string) (int64, error) {
	return 0, rate.ErrUnavailable
}
func (downCounter) SetLock(context.Context, string, time.Duration) error { return rate.ErrUnavailable }
func (downCounter) Exists(context.Context, string) (bool, error) { return false, rate.ErrUnavailable }
func (downCounter) Delete(context.Context, ...string) error { return rate.ErrUnavailable }
func (downCounter) Ping(context.Context) error { return rate.ErrUnavailable }

// testClock is a settable clock shared by the engine and its jwt manager.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("test-secret-0123456789-abcdefghij")
	cfg.JWT.Issuer = "goguard-test"
	cfg.Password.Algorithm = "bcrypt"
	cfg.Password.BcryptCost = 4
	cfg.Account.PasswordMaxLength = 72
	cfg.RateLimit.Login = RateLimitRule{Limit: 100, Window: time.Minute}
	cfg.RateLimit.Refresh = RateLimitRule{Limit: 100, Window: time.Minute}
	cfg.RateLimit.Register = RateLimitRule{Limit: 100, Window: time.Minute}
	return cfg
}

func testHasher(t testing.TB) PasswordHasher {
	t.Helper()
	bc, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return bc
}

type testEnv struct {
	engine *Engine
	store  *memStore
	mr     *miniredis.Miniredis
	rdb    *redis.Client
}

type engineOption func(*Builder)

func withSink(sink AuditSink) engineOption {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

func withClock(c *testClock) engineOption {
	return func(b *Builder) { b.WithClock(c.Now) }
}

func withCounter(c rate.Counter) engineOption {
	return func(b *Builder) { b.counter = c }
}

func withHasher(h PasswordHasher) engineOption {
	return func(b *Builder) { b.WithPasswordHasher(h) }
}

func newTestEnv(t testing.TB, cfg Config, opts ...engineOption) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := newMemStore()

	b := New().WithConfig(cfg).WithRedis(rdb).WithStore(store).WithPasswordHasher(testHasher(t))
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &testEnv{engine: engine, store: store, mr: mr, rdb: rdb}
}

func (env *testEnv) register(t testing.TB, username string) *User {
	t.Helper()
	u, err := env.engine.Register(context.Background(), username, testPassword)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u
}

func (env *testEnv) login(t testing.TB, username string) *TokenPair {
	t.Helper()
	pair, err := env.engine.Login(context.Background(), username, testPassword)
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return pair
}
