package flows

import (
	"context"

	"github.com/MrEthical07/goGuard/jwt"
)

// LogoutFailureKind classifies logout failures.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureParse
	LogoutFailureWrongType
	LogoutFailureRevoke
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	// ParseIgnoringExpiry checks the signature but accepts expired tokens.
	ParseIgnoringExpiry func(string) (*jwt.Claims, error)
	Revoke              func(ctx context.Context, jti string) error
	RevokeAllForUser    func(ctx context.Context, userID int64) (int64, error)
}

type LogoutResult struct {
	Failure LogoutFailureKind
	Err     error
	JTI     string
	UserID  string
}

// RunLogout revokes the presented refresh token by jti. Revoking an unknown or
// already revoked jti is a no-op.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	claims, err := deps.ParseIgnoringExpiry(refreshToken)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureParse, Err: err}
	}
	if claims.Type != jwt.TypeRefresh {
		return LogoutResult{Failure: LogoutFailureWrongType, JTI: claims.ID, UserID: claims.Subject}
	}
	if err := deps.Revoke(ctx, claims.ID); err != nil {
		return LogoutResult{Failure: LogoutFailureRevoke, Err: err, JTI: claims.ID, UserID: claims.Subject}
	}
	return LogoutResult{JTI: claims.ID, UserID: claims.Subject}
}

func RunLogoutAll(ctx context.Context, userID int64, deps LogoutDeps) (int64, error) {
	return deps.RevokeAllForUser(ctx, userID)
}
