package authkit

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/homefund/authkit/internal"
	"github.com/homefund/authkit/internal/rate"
	"github.com/homefund/authkit/internal/stores"
	"github.com/homefund/authkit/jwt"
	"github.com/homefund/authkit/password"
	"github.com/homefund/authkit/session"
)

// Engine is the credential and session lifecycle core. Build one with
// [Builder]; it is immutable and safe for concurrent use afterwards.
type Engine struct {
	config            Config
	credentials       CredentialStore
	sessionStore      *session.Store
	lockout           *rate.Limiter
	verificationStore *stores.VerificationStore
	resetStore        *stores.PasswordResetStore
	audit             *auditDispatcher
	mail              *mailDispatcher
	metrics           *Metrics
	passwordHash      *password.Hasher
	jwtManager        *jwt.Manager

	// dummyHash is a throwaway Argon2id digest computed once at Build time.
	// Login verifies unknown-email attempts against it so the two failure
	// branches take the same time.
	dummyHash string
}

// Close flushes and stops the async dispatchers. The Engine must not be
// used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.mail != nil {
		e.mail.Close()
	}
}

// AuditDropped returns the number of audit events dropped due to a full
// buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MailDropped returns the number of mail jobs dropped due to a full buffer.
func (e *Engine) MailDropped() uint64 {
	if e == nil || e.mail == nil {
		return 0
	}
	return e.mail.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login authenticates an email/password pair and issues a session.
// deviceFingerprint is optional; when non-empty, the session is bound to it
// and refreshes from other devices are rejected.
//
// Checks run in a fixed order, each one only after the previous passed:
// lockout, credential lookup, password compare, verified flag. Unknown
// emails and wrong passwords both count against the lockout window and both
// return [ErrInvalidCredentials]; the unknown-email branch still performs a
// full Argon2id comparison against the dummy hash so the two cases are not
// separable by timing.
func (e *Engine) Login(ctx context.Context, email, plaintext, deviceFingerprint string) (*AuthResult, error) {
	if e == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricLoginLatency, time.Since(start))
		}
	}()

	locked, err := e.lockout.IsLocked(ctx, email)
	if err != nil {
		return nil, err
	}
	if locked {
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", ErrTooManyAttempts, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, ErrTooManyAttempts
	}

	user, err := e.credentials.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNoUser) {
			return nil, err
		}
		// Burn the same hashing cost a real comparison would.
		if _, verr := e.passwordHash.Verify(plaintext, e.dummyHash); verr != nil {
			log.Print("authkit: dummy hash comparison failed")
		}
		return nil, e.failLogin(ctx, email, "")
	}

	ok, err := e.passwordHash.Verify(plaintext, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.failLogin(ctx, email, user.ID)
	}

	if !user.EmailVerified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrEmailNotVerified, func() map[string]string {
			return map[string]string{"email": email, "reason": "email_unverified"}
		})
		return nil, ErrEmailNotVerified
	}

	if e.config.Password.UpgradeOnLogin {
		if needsUpgrade, uerr := e.passwordHash.NeedsUpgrade(user.PasswordHash); uerr == nil && needsUpgrade {
			if upgraded, herr := e.passwordHash.Hash(plaintext); herr == nil {
				// Rehash update is best-effort and must not block the login.
				if serr := e.credentials.UpdatePasswordHash(ctx, user.ID, upgraded); serr != nil {
					log.Print("authkit: password hash upgrade update failed")
				}
			} else {
				log.Print("authkit: password hash upgrade generation failed")
			}
		}
	}
	plaintext = ""

	if err := e.lockout.Reset(ctx, email); err != nil {
		return nil, err
	}

	result, err := e.issueSession(ctx, user, deviceFingerprint)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, err, func() map[string]string {
			return map[string]string{"email": email, "reason": "session_issue_failed"}
		})
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return result, nil
}

// failLogin records a failed attempt and returns the shared generic error.
// Both failure branches route through here, so they cannot drift apart.
func (e *Engine) failLogin(ctx context.Context, email, userID string) error {
	if _, err := e.lockout.RecordFailure(ctx, email); err != nil {
		return err
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"email": email}
	})
	return ErrInvalidCredentials
}

// Refresh rotates a refresh token: the presented token is consumed and a
// new session with a fresh token pair is issued. Tokens are single-use; of
// two concurrent refreshes with the same token exactly one succeeds and the
// other gets [ErrSessionInvalid].
//
// A session bound to a device fingerprint only rotates for a matching
// fingerprint; on mismatch the session is revoked before [ErrDeviceChanged]
// is returned. Sessions issued without a binding accept any caller.
func (e *Engine) Refresh(ctx context.Context, refreshToken, deviceFingerprint string) (*AuthResult, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}

	tokenHash := internal.HashRefreshToken(refreshToken)

	sess, err := e.sessionStore.Get(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionCorrupt) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrSessionInvalid, nil)
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	if sess.HasFingerprint {
		provided := internal.HashFingerprint(deviceFingerprint)
		if deviceFingerprint == "" || subtle.ConstantTimeCompare(provided[:], sess.FingerprintHash[:]) != 1 {
			// Revoke: a token presented from the wrong device is treated
			// as compromised.
			if _, _, rerr := e.sessionStore.Remove(ctx, tokenHash); rerr != nil {
				return nil, rerr
			}
			e.metricInc(MetricDeviceMismatch)
			e.metricInc(MetricSessionInvalidated)
			e.emitAudit(ctx, auditEventDeviceBindingRejected, false, sess.UserID, ErrDeviceChanged, nil)
			return nil, ErrDeviceChanged
		}
	}

	// The atomic remove is the rotation arbiter.
	userID, existed, err := e.sessionStore.Remove(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if !existed {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, sess.UserID, ErrSessionInvalid, nil)
		return nil, ErrSessionInvalid
	}
	e.metricInc(MetricSessionInvalidated)

	user, err := e.credentials.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoUser) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, ErrSessionInvalid, nil)
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	result, err := e.issueSession(ctx, user, deviceFingerprint)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, nil, nil)

	return result, nil
}

// Logout revokes the session behind a refresh token. It is idempotent:
// unknown, expired, and already-revoked tokens all succeed silently.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	tokenHash := internal.HashRefreshToken(refreshToken)
	userID, existed, err := e.sessionStore.Remove(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, session.ErrSessionCorrupt) {
			return nil
		}
		return err
	}
	if existed {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
		e.emitAudit(ctx, auditEventLogoutSession, true, userID, nil, nil)
	}

	return nil
}

// ValidateAccess verifies an access token and returns its claims.
func (e *Engine) ValidateAccess(tokenStr string) (*jwt.AccessClaims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}

// issueSession creates a new refresh-token session for a user and signs an
// access token. A non-empty fingerprint binds the session to that device.
func (e *Engine) issueSession(ctx context.Context, user *User, deviceFingerprint string) (*AuthResult, error) {
	refreshToken, err := internal.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &session.Session{
		UserID:    user.ID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.Session.RefreshTTL).Unix(),
	}
	if deviceFingerprint != "" {
		sess.FingerprintHash = internal.HashFingerprint(deviceFingerprint)
		sess.HasFingerprint = true
	}

	tokenHash := internal.HashRefreshToken(refreshToken)
	if err := e.sessionStore.Save(ctx, tokenHash, sess, e.config.Session.RefreshTTL); err != nil {
		return nil, err
	}
	e.metricInc(MetricSessionCreated)

	access, err := e.jwtManager.CreateAccess(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}
