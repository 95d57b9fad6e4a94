package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goGuard/jwt"
)

// ValidateFailureKind classifies access-token resolution failures for
// root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureParse
	ValidateFailureWrongType
	ValidateFailureSubject
	ValidateFailureUserNotFound
	ValidateFailureUserStore
)

// ValidateResult returns either the claims and user or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
	User    UserRecord
}

// ValidateDeps captures access-token resolution dependencies. The refresh
// store is never consulted on this path.
type ValidateDeps struct {
	ParseToken   func(string) (*jwt.Claims, error)
	FindUserByID func(ctx context.Context, id int64) (UserRecord, error)
	UserNotFound error
}

// RunResolveUser verifies an access token and loads its subject.
func RunResolveUser(ctx context.Context, tokenStr string, deps ValidateDeps) ValidateResult {
	claims, err := deps.ParseToken(tokenStr)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureParse, Err: err}
	}
	if claims.Type != jwt.TypeAccess {
		return ValidateResult{Failure: ValidateFailureWrongType, Claims: claims}
	}
	userID, err := ParseSubject(claims.Subject)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureSubject, Err: err, Claims: claims}
	}

	user, err := deps.FindUserByID(ctx, userID)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return ValidateResult{Failure: ValidateFailureUserNotFound, Err: err, Claims: claims}
		}
		return ValidateResult{Failure: ValidateFailureUserStore, Err: err, Claims: claims}
	}
	return ValidateResult{Claims: claims, User: user}
}
