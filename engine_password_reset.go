package authkit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/homefund/authkit/internal"
	"github.com/homefund/authkit/internal/stores"
)

// ForgotPassword issues a single-use reset token for the account and mails
// it as a link. Unknown emails return the same generic message with no side
// effects, so the endpoint cannot be used to probe for accounts.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (Message, error) {
	if e == nil || e.resetStore == nil {
		return Message{}, ErrEngineNotReady
	}
	e.metricInc(MetricResetRequest)

	user, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNoUser) {
			return genericMessage(forgotPasswordMessageText), nil
		}
		return Message{}, err
	}

	token, err := internal.NewResetToken()
	if err != nil {
		return Message{}, err
	}

	tokenHash := internal.HashResetToken(token)
	if err := e.resetStore.Save(ctx, tokenHash, user.ID, e.config.PasswordReset.TokenTTL); err != nil {
		return Message{}, err
	}

	e.mail.SendPasswordResetLink(email, token)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return genericMessage(forgotPasswordMessageText), nil
}

// ResetPassword consumes a reset token, replaces the password hash, and
// revokes every session the user holds. Token shape is checked before any
// store access: a malformed token never costs a Redis round trip.
//
// Session invalidation is not best-effort. If it fails the password has
// already changed, so the caller gets [ErrSessionInvalidationFailed] and
// must retry rather than believe old sessions are dead.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (Message, error) {
	if e == nil || e.resetStore == nil {
		return Message{}, ErrEngineNotReady
	}

	if !internal.IsResetTokenShaped(token) {
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", ErrResetTokenInvalid, nil)
		return Message{}, ErrResetTokenInvalid
	}

	// Policy is checked before the token is consumed. Consume is a GETDEL,
	// so ordering it first would burn the single-use token on a rejected
	// password and force the user back through ForgotPassword.
	if err := e.passwordHash.CheckPolicy(newPassword); err != nil {
		return Message{}, ErrPasswordPolicy
	}

	tokenHash := internal.HashResetToken(token)
	userID, err := e.resetStore.Consume(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, stores.ErrResetNotFound) {
			e.metricInc(MetricResetFailure)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", ErrResetTokenInvalid, nil)
			return Message{}, ErrResetTokenInvalid
		}
		return Message{}, err
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return Message{}, err
	}
	newPassword = ""

	if err := e.credentials.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return Message{}, err
	}

	revoked, err := e.sessionStore.RemoveAllForUser(ctx, userID)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, ErrSessionInvalidationFailed, nil)
		return Message{}, fmt.Errorf("%w: %v", ErrSessionInvalidationFailed, err)
	}
	for i := 0; i < revoked; i++ {
		e.metricInc(MetricSessionInvalidated)
	}
	e.metricInc(MetricLogoutAll)

	// A fresh password should not inherit the old one's failed attempts.
	user, err := e.credentials.FindByID(ctx, userID)
	if err == nil {
		if rerr := e.lockout.Reset(ctx, user.Email); rerr != nil {
			log.Printf("authkit: lockout reset failed for %s: %v", userID, rerr)
		}
	}

	e.metricInc(MetricResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, userID, nil, func() map[string]string {
		return map[string]string{"sessions_revoked": strconv.Itoa(revoked)}
	})

	return genericMessage(resetPasswordMessageText), nil
}

// LogoutAll revokes every session the user holds. Returns the number of
// sessions removed.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}

	revoked, err := e.sessionStore.RemoveAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSessionInvalidationFailed, err)
	}

	for i := 0; i < revoked; i++ {
		e.metricInc(MetricSessionInvalidated)
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, nil, func() map[string]string {
		return map[string]string{"sessions_revoked": strconv.Itoa(revoked)}
	})

	return revoked, nil
}
