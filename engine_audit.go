package goGuard

import "context"

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginLocked          = "login_locked"
	auditEventLockoutTriggered     = "lockout_triggered"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterFailure      = "register_failure"
	auditEventLogout               = "logout"
	auditEventLogoutAll            = "logout_all"
	auditEventRateLimitTriggered   = "rate_limit_triggered"
	auditEventRoleForbidden        = "role_forbidden"
	auditEventPasswordRehash       = "password_rehash"
)

type auditFields struct {
	UserID   string
	Username string
	JTI      string
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	fields auditFields,
	err error,
	attrsFn func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var attrs map[string]string
	if attrsFn != nil {
		attrs = attrsFn()
	}

	event := AuditEvent{
		At:        e.now().UTC(),
		Type:      eventType,
		UserID:    fields.UserID,
		Username:  fields.Username,
		JTI:       fields.JTI,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Attrs:     attrs,
	}
	if err != nil {
		event.Reason = KindOf(err).String()
	}

	e.audit.Emit(ctx, event)
}
