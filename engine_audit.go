package authkit

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLoginRateLimited         = "login_rate_limited"
	auditEventRefreshSuccess           = "refresh_success"
	auditEventRefreshInvalid           = "refresh_invalid"
	auditEventDeviceBindingRejected    = "device_binding_rejected"
	auditEventLogoutSession            = "logout_session"
	auditEventLogoutAll                = "logout_all"
	auditEventRegisterSuccess          = "register_success"
	auditEventRegisterDuplicate        = "register_duplicate"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventEmailVerificationConfirm = "email_verification_confirm"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
)

// AuditErrorCode is the coarse error classification recorded on audit
// events in place of raw error text.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrUnverified          AuditErrorCode = "email_unverified"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrDeviceMismatch      AuditErrorCode = "device_mismatch"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrSessionInvalidation AuditErrorCode = "session_invalidation_failed"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrRateLimited
	case errors.Is(err, ErrEmailNotVerified):
		return auditErrUnverified
	case errors.Is(err, ErrCodeInvalid),
		errors.Is(err, ErrSessionInvalid),
		errors.Is(err, ErrResetTokenInvalid),
		errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrDeviceChanged):
		return auditErrDeviceMismatch
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	default:
		return auditErrInternal
	}
}
