package goGuard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goGuard/internal/flows"
)

// IssueAccessToken signs an access token for userID with role.
func (e *Engine) IssueAccessToken(userID int64, role Role) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}
	if userID <= 0 || !role.Valid() {
		return "", ErrInvalidInput
	}
	token, _, err := e.jwtManager.IssueAccess(strconv.FormatInt(userID, 10), string(role))
	return token, err
}

// IssueRefreshToken signs a refresh token and returns its expiry. The caller
// must persist a RefreshTokenRecord for the token's jti before handing it out;
// Login does this itself.
func (e *Engine) IssueRefreshToken(userID int64) (string, time.Time, error) {
	if e == nil || e.jwtManager == nil {
		return "", time.Time{}, ErrEngineNotReady
	}
	if userID <= 0 {
		return "", time.Time{}, ErrInvalidInput
	}
	token, claims, err := e.jwtManager.IssueRefresh(strconv.FormatInt(userID, 10))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// Verify checks signature, algorithm and expiry. It does not look at the
// token type or any store.
func (e *Engine) Verify(token string) (*Claims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.jwtManager.Parse(token)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, tokenError(err)
	}
	return claims, nil
}

// RotateRefresh exchanges a live refresh token for a new pair. The presented
// token is revoked in the same transaction that stores its successor, so of
// several concurrent presentations at most one succeeds.
func (e *Engine) RotateRefresh(ctx context.Context, presented string) (*TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, presented)
	fields := auditFields{JTI: res.JTI}
	if res.UserID != 0 {
		fields.UserID = strconv.FormatInt(res.UserID, 10)
	}

	if res.Failure == flows.RefreshFailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, fields, nil, nil)
		return tokenPair(res.Pair), nil
	}

	var err error
	switch res.Failure {
	case flows.RefreshFailureRateLimited:
		e.metricInc(MetricRefreshRateLimited)
		return nil, res.Err
	case flows.RefreshFailureParse:
		e.metricInc(MetricTokenRejected)
		err = tokenError(res.Err)
	case flows.RefreshFailureWrongType:
		err = ErrWrongTokenType
	case flows.RefreshFailureSubject:
		err = ErrInvalidToken
	case flows.RefreshFailureUserNotFound:
		err = ErrUserNotFound
	case flows.RefreshFailureRevokedOrUnknown:
		err = ErrRevokedOrUnknown
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		if res.FamilyRevoked > 0 {
			e.metricInc(MetricRefreshFamilyRevoked)
		}
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, fields, ErrRevokedOrUnknown, func() map[string]string {
			return map[string]string{
				"family_revoked": strconv.FormatInt(res.FamilyRevoked, 10),
			}
		})
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRevokedOrUnknown
	case flows.RefreshFailureUserStore, flows.RefreshFailureRotate:
		e.metricInc(MetricStoreUnavailable)
		err = unavailable(res.Err)
	default:
		err = fmt.Errorf("goGuard: refresh: %w", res.Err)
	}

	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, fields, err, nil)
	return nil, err
}

// Revoke marks the refresh token jti as revoked. Unknown or already revoked
// jtis are a no-op.
func (e *Engine) Revoke(ctx context.Context, jti string) error {
	if e == nil || e.refresh == nil {
		return ErrEngineNotReady
	}
	if jti == "" {
		return ErrInvalidInput
	}
	if err := e.refresh.RevokeRefreshToken(ctx, jti); err != nil {
		e.metricInc(MetricStoreUnavailable)
		return unavailable(err)
	}
	return nil
}

// ResolveCurrentUser verifies an access token and loads its subject. Refresh
// tokens are rejected with ErrWrongTokenType.
func (e *Engine) ResolveCurrentUser(ctx context.Context, accessToken string) (*User, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}
	res := e.flows.ResolveUser(ctx, accessToken)
	if !start.IsZero() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	switch res.Failure {
	case flows.ValidateFailureNone:
		return userFromRecord(res.User), nil
	case flows.ValidateFailureParse:
		e.metricInc(MetricTokenRejected)
		return nil, tokenError(res.Err)
	case flows.ValidateFailureWrongType:
		e.metricInc(MetricTokenRejected)
		return nil, ErrWrongTokenType
	case flows.ValidateFailureSubject:
		e.metricInc(MetricTokenRejected)
		return nil, ErrInvalidToken
	case flows.ValidateFailureUserNotFound:
		return nil, ErrUserNotFound
	case flows.ValidateFailureUserStore:
		e.metricInc(MetricStoreUnavailable)
		return nil, unavailable(res.Err)
	default:
		return nil, fmt.Errorf("goGuard: resolve user: %w", res.Err)
	}
}

// RequireRole returns ErrForbidden unless user holds exactly role.
func (e *Engine) RequireRole(user *User, role Role) error {
	if user != nil && user.Role == role {
		return nil
	}
	e.metricInc(MetricRoleForbidden)
	if e != nil && user != nil {
		e.emitAudit(context.Background(), auditEventRoleForbidden, false, auditFields{
			UserID:   strconv.FormatInt(user.ID, 10),
			Username: user.Username,
		}, ErrForbidden, func() map[string]string {
			return map[string]string{
				"required": string(role),
				"actual":   string(user.Role),
			}
		})
	}
	return ErrForbidden
}

// Logout revokes a refresh token. An expired but correctly signed token is
// still revoked by jti.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}

	res := e.flows.Logout(ctx, refreshToken)
	fields := auditFields{UserID: res.UserID, JTI: res.JTI}
	switch res.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, fields, nil, nil)
		return nil
	case flows.LogoutFailureParse:
		e.metricInc(MetricTokenRejected)
		return ErrInvalidToken
	case flows.LogoutFailureWrongType:
		return ErrWrongTokenType
	default:
		e.metricInc(MetricStoreUnavailable)
		err := unavailable(res.Err)
		e.emitAudit(ctx, auditEventLogout, false, fields, err, nil)
		return err
	}
}

// LogoutAll revokes every live refresh token of userID and returns how many
// were revoked. Access tokens stay valid until they expire.
func (e *Engine) LogoutAll(ctx context.Context, userID int64) (int64, error) {
	if e == nil || !e.flows.Initialized() {
		return 0, ErrEngineNotReady
	}
	if userID <= 0 {
		return 0, ErrInvalidInput
	}

	n, err := e.flows.LogoutAll(ctx, userID)
	fields := auditFields{UserID: strconv.FormatInt(userID, 10)}
	if err != nil {
		e.metricInc(MetricStoreUnavailable)
		err = unavailable(err)
		e.emitAudit(ctx, auditEventLogoutAll, false, fields, err, nil)
		return 0, err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, fields, nil, func() map[string]string {
		return map[string]string{
			"revoked": strconv.FormatInt(n, 10),
		}
	})
	return n, nil
}
