package goGuard

import (
	"context"
	"time"

	"github.com/MrEthical07/goGuard/jwt"
)

// Role is a user's authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account as held by the persistent store. Username is unique and
// stored normalized (trimmed, lowercase).
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// TokenType is the value of the "type" claim.
type TokenType = jwt.TokenType

const (
	TokenAccess  = jwt.TypeAccess
	TokenRefresh = jwt.TypeRefresh
)

// Claims is a verified token payload. Subject is the decimal user id; ID is
// the jti.
type Claims = jwt.Claims

// TokenPair is returned by Login and RotateRefresh.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// RefreshTokenRecord is the persisted state of one issued refresh token.
// Revoked only ever moves from false to true.
type RefreshTokenRecord struct {
	JTI       string
	UserID    int64
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// UserStore is the account half of the persistent store.
type UserStore interface {
	// CreateUser returns ErrUsernameTaken when the username exists.
	CreateUser(ctx context.Context, username, passwordHash string, role Role) (*User, error)
	// GetUserByUsername and GetUserByID return ErrUserNotFound when absent.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// RefreshTokenStore is the refresh-token half of the persistent store.
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, record RefreshTokenRecord) error
	// GetRefreshToken returns ErrRevokedOrUnknown when the jti was never stored.
	GetRefreshToken(ctx context.Context, jti string) (*RefreshTokenRecord, error)
	// RotateRefreshToken revokes oldJTI with a conditional update and inserts
	// next in the same transaction. Zero affected rows is ErrRevokedOrUnknown
	// and nothing is inserted.
	RotateRefreshToken(ctx context.Context, oldJTI string, next RefreshTokenRecord) error
	// RevokeRefreshToken is a no-op for unknown or already revoked jtis.
	RevokeRefreshToken(ctx context.Context, jti string) error
	// RevokeAllForUser revokes every live token of userID and returns the count.
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
}

// Pinger is implemented by stores that can report reachability to Health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PasswordHasher hashes and verifies passwords. Verify returns false without
// error on mismatch.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// PasswordUpgrader is optionally implemented by a PasswordHasher to request
// rehash-on-login for hashes made with weaker settings.
type PasswordUpgrader interface {
	NeedsUpgrade(encoded string) (bool, error)
}
