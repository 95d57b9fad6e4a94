package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType is the value of the "type" claim.
type TokenType string

const (
	// TypeAccess marks short-lived bearer tokens.
	TypeAccess TokenType = "access"
	// TypeRefresh marks long-lived rotation tokens.
	TypeRefresh TokenType = "refresh"
)

const minSecretBytes = 8

var (
	// ErrTokenInvalid covers bad signatures, wrong algorithms and malformed payloads.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned for a correctly signed token past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidConfig is returned by NewManager.
	ErrInvalidConfig = errors.New("invalid jwt configuration")
)

// Config holds signing material and lifetimes.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration
	// KeyID is written to the kid header when set.
	KeyID string
	// VerifyKeys maps kid to secret for verifying tokens signed before a rotation.
	VerifyKeys map[string][]byte
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Claims is the token payload.
type Claims struct {
	Type TokenType `json:"type"`
	Role string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. It is immutable after NewManager.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrInvalidConfig, minSecretBytes)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, fmt.Errorf("%w: access ttl must be shorter than refresh ttl", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway out of range", ErrInvalidConfig)
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" || len(key) < minSecretBytes {
			return nil, fmt.Errorf("%w: verify key %q", ErrInvalidConfig, kid)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{config: cfg, now: now}, nil
}

// AccessTTL returns the configured access lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the configured refresh lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// IssueAccess signs an access token for subject with role.
func (m *Manager) IssueAccess(subject, role string) (string, *Claims, error) {
	return m.issue(TypeAccess, subject, role, m.config.AccessTTL)
}

// IssueRefresh signs a refresh token for subject. The caller persists the jti.
func (m *Manager) IssueRefresh(subject string) (string, *Claims, error) {
	return m.issue(TypeRefresh, subject, "", m.config.RefreshTTL)
}

func (m *Manager) issue(typ TokenType, subject, role string, ttl time.Duration) (string, *Claims, error) {
	if subject == "" {
		return "", nil, errors.New("jwt: empty subject")
	}
	jti, err := uuid.NewRandom()
	if err != nil {
		return "", nil, fmt.Errorf("jwt: generate jti: %w", err)
	}

	// Tokens carry whole-second timestamps, so truncate before deriving exp.
	now := m.now().Truncate(time.Second)
	claims := &Claims{
		Type: typ,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti.String(),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature and expiry and returns the claims. It does not
// check the token type.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, false)
}

// ParseIgnoringExpiry verifies the signature and payload shape but accepts a
// token past its exp. Revocation paths use it so an expired refresh token can
// still be retired by jti.
func (m *Manager) ParseIgnoringExpiry(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, true)
}

func (m *Manager) parse(tokenStr string, allowExpired bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if allowExpired {
		options = append(options, jwt.WithoutClaimsValidation())
	} else {
		options = append(options,
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(m.now),
		)
		if m.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(m.config.Leeway))
		}
		if m.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(m.config.Issuer))
		}
		if m.config.Audience != "" {
			options = append(options, jwt.WithAudience(m.config.Audience))
		}
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Type != TypeAccess && claims.Type != TypeRefresh {
		return nil, fmt.Errorf("%w: unknown type %q", ErrTokenInvalid, claims.Type)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrTokenInvalid)
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" || kid == m.config.KeyID {
		return m.config.Secret, nil
	}
	if key, ok := m.config.VerifyKeys[kid]; ok {
		return key, nil
	}
	return nil, errors.New("unknown kid")
}
