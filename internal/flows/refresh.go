package flows

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goGuard/jwt"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureRateLimited
	RefreshFailureParse
	RefreshFailureWrongType
	RefreshFailureSubject
	RefreshFailureUserNotFound
	RefreshFailureUserStore
	RefreshFailureIssue
	RefreshFailureRevokedOrUnknown
	RefreshFailureReuse
	RefreshFailureRotate
)

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  int64
	// JTI is the presented token's id, set once the token parsed.
	JTI  string
	Pair IssuedPair
	// FamilyRevoked counts refresh tokens revoked after reuse detection.
	FamilyRevoked int64
}

// RefreshStore is the persistent refresh-token state seen by the refresh flow.
type RefreshStore interface {
	// Rotate revokes oldJTI and inserts next atomically. A missing or already
	// revoked oldJTI yields the RevokedOrUnknown sentinel.
	Rotate(ctx context.Context, oldJTI string, next RefreshRecord) error
	Get(ctx context.Context, jti string) (RefreshRecord, error)
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	ClientIPFromContext func(context.Context) string
	CheckRate           func(ctx context.Context, identity string) error
	ParseToken          func(string) (*jwt.Claims, error)
	FindUserByID        func(ctx context.Context, id int64) (UserRecord, error)
	IssuePair           func(UserRecord) (IssuedPair, error)
	Store               RefreshStore
	RevokeFamilyOnReuse bool
	Warn                func(string, ...any)
	UserNotFound        error
	RevokedOrUnknown    error
}

// RunRefresh verifies a refresh token and exchanges it for a new pair. The
// presented token is retired by a conditional update, so of several
// concurrent presentations exactly one succeeds.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	if deps.CheckRate != nil {
		ip := ""
		if deps.ClientIPFromContext != nil {
			ip = deps.ClientIPFromContext(ctx)
		}
		if err := deps.CheckRate(ctx, ip); err != nil {
			return RefreshResult{Failure: RefreshFailureRateLimited, Err: err}
		}
	}

	claims, err := deps.ParseToken(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureParse, Err: err}
	}
	if claims.Type != jwt.TypeRefresh {
		return RefreshResult{Failure: RefreshFailureWrongType, JTI: claims.ID}
	}
	userID, err := ParseSubject(claims.Subject)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureSubject, Err: err, JTI: claims.ID}
	}

	user, err := deps.FindUserByID(ctx, userID)
	if err != nil {
		// A token that is already dead reports as such, whatever happened
		// to its owner.
		if cause := retiredToken(ctx, claims.ID, deps); cause != nil {
			return classifyRejectedRefresh(ctx, claims.ID, userID, cause, deps)
		}
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return RefreshResult{Failure: RefreshFailureUserNotFound, Err: err, UserID: userID, JTI: claims.ID}
		}
		return RefreshResult{Failure: RefreshFailureUserStore, Err: err, UserID: userID, JTI: claims.ID}
	}

	pair, err := deps.IssuePair(user)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: userID, JTI: claims.ID}
	}

	err = deps.Store.Rotate(ctx, claims.ID, pair.Record)
	switch {
	case err == nil:
		return RefreshResult{UserID: userID, JTI: claims.ID, Pair: pair}
	case deps.RevokedOrUnknown != nil && errors.Is(err, deps.RevokedOrUnknown):
		return classifyRejectedRefresh(ctx, claims.ID, userID, err, deps)
	default:
		return RefreshResult{Failure: RefreshFailureRotate, Err: err, UserID: userID, JTI: claims.ID}
	}
}

// retiredToken returns the rejection cause when jti is unknown to the store
// or already revoked, and nil otherwise. Store errors other than the
// not-found sentinel count as alive.
func retiredToken(ctx context.Context, jti string, deps RefreshDeps) error {
	if deps.Store == nil || deps.RevokedOrUnknown == nil {
		return nil
	}
	rec, err := deps.Store.Get(ctx, jti)
	switch {
	case err == nil && rec.Revoked:
		return deps.RevokedOrUnknown
	case err != nil && errors.Is(err, deps.RevokedOrUnknown):
		return err
	}
	return nil
}

// classifyRejectedRefresh distinguishes a replayed (known, revoked) token from
// one the store never saw, and revokes the family on replay when configured.
func classifyRejectedRefresh(ctx context.Context, jti string, userID int64, cause error, deps RefreshDeps) RefreshResult {
	res := RefreshResult{Failure: RefreshFailureRevokedOrUnknown, Err: cause, UserID: userID, JTI: jti}

	rec, err := deps.Store.Get(ctx, jti)
	if err != nil || !rec.Revoked {
		return res
	}
	res.Failure = RefreshFailureReuse
	if !deps.RevokeFamilyOnReuse {
		return res
	}

	n, err := deps.Store.RevokeAllForUser(ctx, rec.UserID)
	if err != nil {
		deps.Warn("goGuard: refresh family revocation failed", "user_id", rec.UserID, "error", err)
		return res
	}
	res.FamilyRevoked = n
	return res
}

// ParseSubject decodes the numeric sub claim.
func ParseSubject(sub string) (int64, error) {
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("subject is not a positive user id")
	}
	return id, nil
}
