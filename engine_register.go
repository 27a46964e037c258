package authkit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/homefund/authkit/internal"
	"github.com/homefund/authkit/internal/stores"
)

// Register creates an unverified account and sends a verification code.
// Every exit path returns the same generic message: a caller cannot tell
// whether the email was new, already registered, or lost a concurrent
// insert race. The database's unique constraint on email is the arbiter
// for that race; the loser is folded into the duplicate branch here.
func (e *Engine) Register(ctx context.Context, email, plaintext, firstName, lastName string) (Message, error) {
	if e == nil || e.credentials == nil {
		return Message{}, ErrEngineNotReady
	}
	e.metricInc(MetricRegisterRequest)

	// Policy is checked before the email lookup. A policy rejection must
	// read the same for taken and free addresses, or the failure itself
	// becomes an existence oracle.
	if err := e.passwordHash.CheckPolicy(plaintext); err != nil {
		return Message{}, ErrPasswordPolicy
	}

	existing, err := e.credentials.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNoUser) {
		return Message{}, err
	}
	if existing != nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, true, existing.ID, nil, func() map[string]string {
			return map[string]string{"email": email}
		})
		return genericMessage(registerMessageText), nil
	}

	hash, err := e.passwordHash.Hash(plaintext)
	if err != nil {
		return Message{}, err
	}
	plaintext = ""

	now := time.Now()
	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.credentials.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, true, "", nil, func() map[string]string {
				return map[string]string{"email": email}
			})
			return genericMessage(registerMessageText), nil
		}
		return Message{}, err
	}

	if err := e.issueVerificationCode(ctx, email); err != nil {
		return Message{}, err
	}

	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return genericMessage(registerMessageText), nil
}

// VerifyCode consumes a pending verification code, flips the account to
// verified, and logs the user in. Absent, expired, and mismatched codes all
// return [ErrCodeInvalid].
func (e *Engine) VerifyCode(ctx context.Context, email, code, deviceFingerprint string) (*AuthResult, error) {
	if e == nil || e.verificationStore == nil {
		return nil, ErrEngineNotReady
	}

	codeHash := internal.HashCode(code)
	if err := e.verificationStore.Consume(ctx, email, codeHash); err != nil {
		if errors.Is(err, stores.ErrCodeNotFound) || errors.Is(err, stores.ErrCodeMismatch) {
			e.metricInc(MetricVerificationFailure)
			e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", ErrCodeInvalid, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, ErrCodeInvalid
		}
		return nil, err
	}

	user, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		// The account vanished between code issue and consumption. Treated
		// as an invalid code rather than a distinct signal.
		if errors.Is(err, ErrNoUser) {
			e.metricInc(MetricVerificationFailure)
			return nil, ErrCodeInvalid
		}
		return nil, err
	}

	if !user.EmailVerified {
		if err := e.credentials.MarkEmailVerified(ctx, user.ID); err != nil {
			return nil, err
		}
		user.EmailVerified = true
	}

	result, err := e.issueSession(ctx, user, deviceFingerprint)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, user.ID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return result, nil
}

// ResendCode issues a fresh verification code, replacing any pending one.
// Unknown and already-verified emails return the same generic message with
// no side effects.
func (e *Engine) ResendCode(ctx context.Context, email string) (Message, error) {
	if e == nil || e.credentials == nil {
		return Message{}, ErrEngineNotReady
	}

	user, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNoUser) {
			return genericMessage(resendMessageText), nil
		}
		return Message{}, err
	}
	if user.EmailVerified {
		return genericMessage(resendMessageText), nil
	}

	if err := e.issueVerificationCode(ctx, email); err != nil {
		return Message{}, err
	}

	return genericMessage(resendMessageText), nil
}

// issueVerificationCode generates, stores, and dispatches a code. The store
// write overwrites any pending code for the address, so at most one code is
// ever valid.
func (e *Engine) issueVerificationCode(ctx context.Context, email string) error {
	code, err := internal.NewVerificationCode(e.config.Verification.CodeDigits)
	if err != nil {
		return err
	}

	codeHash := internal.HashCode(code)
	if err := e.verificationStore.Save(ctx, email, codeHash, e.config.Verification.CodeTTL); err != nil {
		return err
	}

	e.mail.SendVerificationCode(email, code)
	e.metricInc(MetricVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return nil
}
