package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m, err := NewManager(Config{
		Secret:     []byte("test-secret-test-secret"),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	return m, clock
}

func TestAccessRoundTripThenExpires(t *testing.T) {
	m, clock := newTestManager(t)

	token, issued, err := m.IssueAccess("42", "admin")
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, TypeAccess, claims.Type)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, clock.Now().Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())

	clock.Advance(14*time.Minute + 59*time.Second)
	_, err = m.Parse(token)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshCarriesNoRole(t *testing.T) {
	m, clock := newTestManager(t)

	token, issued, err := m.IssueRefresh("7")
	require.NoError(t, err)
	assert.True(t, clock.Now().Add(7*24*time.Hour).Equal(issued.ExpiresAt.Time))

	payload := decodePayload(t, token)
	assert.Equal(t, "refresh", payload["type"])
	assert.Equal(t, "7", payload["sub"])
	assert.NotContains(t, payload, "role")
	for _, k := range []string{"iat", "exp", "jti"} {
		assert.Contains(t, payload, k)
	}
}

func TestJTIIsUnique(t *testing.T) {
	m, _ := newTestManager(t)

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		_, c, err := m.IssueRefresh("1")
		require.NoError(t, err)
		_, dup := seen[c.ID]
		require.False(t, dup, "jti reused: %s", c.ID)
		seen[c.ID] = struct{}{}
	}
}

func TestParseRejectsTamperedSignature(t *testing.T) {
	m, _ := newTestManager(t)
	token, _, err := m.IssueAccess("1", "user")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = m.Parse(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsOtherSecret(t *testing.T) {
	m, clock := newTestManager(t)
	other, err := NewManager(Config{
		Secret:     []byte("a-completely-different-secret"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Now:        clock.Now,
	})
	require.NoError(t, err)

	token, _, err := other.IssueAccess("1", "user")
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsExpiredTokenWithBadSignatureAsInvalid(t *testing.T) {
	m, clock := newTestManager(t)
	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "1",
		ID:        "x",
		IssuedAt:  gjwt.NewNumericDate(clock.Now().Add(-time.Hour)),
		ExpiresAt: gjwt.NewNumericDate(clock.Now().Add(-time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret-wrong"))
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	m, clock := newTestManager(t)
	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "1",
		ID:        "x",
		IssuedAt:  gjwt.NewNumericDate(clock.Now()),
		ExpiresAt: gjwt.NewNumericDate(clock.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString([]byte("test-secret-test-secret"))
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(none)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsMalformedPayload(t *testing.T) {
	m, clock := newTestManager(t)

	for name, claims := range map[string]Claims{
		"unknown type": {Type: "session", RegisteredClaims: gjwt.RegisteredClaims{Subject: "1", ID: "x"}},
		"no subject":   {Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{ID: "x"}},
		"no jti":       {Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{Subject: "1"}},
	} {
		claims.IssuedAt = gjwt.NewNumericDate(clock.Now())
		claims.ExpiresAt = gjwt.NewNumericDate(clock.Now().Add(time.Minute))
		token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-test-secret"))
		require.NoError(t, err)

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrTokenInvalid, name)
	}

	for _, garbage := range []string{"", "abc", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.e30."} {
		_, err := m.Parse(garbage)
		assert.ErrorIs(t, err, ErrTokenInvalid, garbage)
	}
}

func TestParseRequiresExp(t *testing.T) {
	m, clock := newTestManager(t)
	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:  "1",
		ID:       "x",
		IssuedAt: gjwt.NewNumericDate(clock.Now()),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-test-secret"))
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestKeyRotationVerifiesPreviousKid(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	old, err := NewManager(Config{
		Secret: []byte("old-secret-old-secret"), KeyID: "k1",
		AccessTTL: time.Minute, RefreshTTL: time.Hour, Now: clock.Now,
	})
	require.NoError(t, err)
	current, err := NewManager(Config{
		Secret: []byte("new-secret-new-secret"), KeyID: "k2",
		VerifyKeys: map[string][]byte{"k1": []byte("old-secret-old-secret")},
		AccessTTL:  time.Minute, RefreshTTL: time.Hour, Now: clock.Now,
	})
	require.NoError(t, err)

	token, _, err := old.IssueAccess("1", "user")
	require.NoError(t, err)
	_, err = current.Parse(token)
	require.NoError(t, err)

	fresh, _, err := current.IssueAccess("1", "user")
	require.NoError(t, err)
	_, err = old.Parse(fresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestNewManagerValidates(t *testing.T) {
	cases := map[string]Config{
		"short secret":      {Secret: []byte("x"), AccessTTL: time.Minute, RefreshTTL: time.Hour},
		"zero access":       {Secret: []byte("long-enough-secret"), RefreshTTL: time.Hour},
		"access >= refresh": {Secret: []byte("long-enough-secret"), AccessTTL: time.Hour, RefreshTTL: time.Hour},
		"leeway":            {Secret: []byte("long-enough-secret"), AccessTTL: time.Minute, RefreshTTL: time.Hour, Leeway: time.Hour},
	}
	for name, cfg := range cases {
		_, err := NewManager(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}
}

func decodePayload(t *testing.T, token string) map[string]any {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestParseIgnoringExpiryKeepsSignatureCheck(t *testing.T) {
	m, clock := newTestManager(t)
	token, issued, err := m.IssueRefresh("9")
	require.NoError(t, err)

	clock.Advance(8 * 24 * time.Hour)
	_, err = m.Parse(token)
	require.ErrorIs(t, err, ErrTokenExpired)

	claims, err := m.ParseIgnoringExpiry(token)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, TypeRefresh, claims.Type)

	other, err := NewManager(Config{
		Secret:     []byte("a-completely-different-secret"),
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	forged, _, err := other.IssueRefresh("9")
	require.NoError(t, err)
	_, err = m.ParseIgnoringExpiry(forged)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
