package authkit

import "errors"

var (
	// ErrInvalidCredentials is returned for both unknown emails and wrong
	// passwords. The message is shared so the two cases are byte-for-byte
	// indistinguishable to callers.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	// ErrTooManyAttempts is returned when the lockout counter for an email
	// has reached its cap. Callers should back off for the remainder of the
	// attempt window.
	ErrTooManyAttempts = errors.New("too many failed attempts, try again later")
	// ErrEmailNotVerified is returned by Login after the password has been
	// confirmed correct, never before, so it cannot probe password validity.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrCodeInvalid covers expired, mismatched, and absent verification
	// codes with one message (no signal leak between the cases).
	ErrCodeInvalid = errors.New("invalid or expired verification code")
	// ErrSessionInvalid covers unknown, expired, and already-rotated refresh
	// tokens with one message.
	ErrSessionInvalid = errors.New("invalid or expired session")
	// ErrDeviceChanged is returned by Refresh when the stored device
	// fingerprint does not match the caller's. The session is revoked before
	// this error is returned.
	ErrDeviceChanged = errors.New("session device changed, please sign in again")
	// ErrResetTokenInvalid covers malformed, expired, consumed, and unknown
	// reset tokens with one message.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
	// ErrTokenInvalid is returned by ValidateAccess for unparsable or expired
	// access tokens.
	ErrTokenInvalid = errors.New("invalid access token")
	// ErrUserNotFound is an internal marker for "user vanished between
	// steps". It never crosses the Engine boundary: orchestration paths map
	// it to the generic unauthorized errors above.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordPolicy is returned when a supplied password fails the
	// hasher's minimum requirements.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrSessionInvalidationFailed is returned when a password reset updated
	// the credential but could not revoke every active session.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrEngineNotReady is returned when an Engine is used before Build
	// completed.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Kind classifies an Engine error for transport layers.
type Kind int

const (
	// KindInternal covers backend and defensive failures; transports should
	// surface these as opaque server errors.
	KindInternal Kind = iota
	// KindUnauthorized covers bad or expired credentials, codes, and tokens.
	KindUnauthorized
	// KindForbidden covers valid credentials blocked by policy.
	KindForbidden
	// KindRateLimited covers lockout rejections.
	KindRateLimited
)

// KindOf maps an Engine error onto the caller-visible taxonomy. Internal
// defensive errors deliberately classify as KindInternal rather than leaking
// a distinct case.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrCodeInvalid),
		errors.Is(err, ErrSessionInvalid),
		errors.Is(err, ErrDeviceChanged),
		errors.Is(err, ErrResetTokenInvalid),
		errors.Is(err, ErrTokenInvalid):
		return KindUnauthorized
	case errors.Is(err, ErrEmailNotVerified):
		return KindForbidden
	case errors.Is(err, ErrTooManyAttempts):
		return KindRateLimited
	default:
		return KindInternal
	}
}
