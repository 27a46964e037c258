package authkit

import (
	"context"
	"errors"
	"time"
)

// ErrNoUser is returned by [CredentialStore] lookups when no matching user
// exists. The Engine maps it to generic responses; it never reaches callers.
var ErrNoUser = errors.New("no user")

// ErrDuplicateEmail is returned by [CredentialStore.Insert] when the email
// is already taken.
var ErrDuplicateEmail = errors.New("duplicate email")

// User is the persistent account record exchanged with the
// [CredentialStore]. PasswordHash is a PHC-encoded Argon2id digest. A
// non-nil DeletedAt marks the account soft-deleted.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// CredentialStore is the interface callers implement to connect the Engine
// to their user database. Every method is a single-row operation against a
// table uniquely keyed by id and by email. Lookups return [ErrNoUser] when
// the row is absent, and must treat soft-deleted rows as absent; Insert
// returns [ErrDuplicateEmail] on an email collision.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Insert(ctx context.Context, user *User) error
	MarkEmailVerified(ctx context.Context, id string) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// Mailer delivers verification codes and reset links. Calls are dispatched
// asynchronously and failures never propagate to Engine callers; a Mailer
// that fails should log on its own.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendPasswordResetLink(ctx context.Context, email, token string) error
}

// AuthResult is returned by operations that establish a session.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// Message is the generic acknowledgement returned by the
// enumeration-sensitive operations. Every exit path of an operation returns
// the same Message value, so the response cannot reveal which branch ran.
type Message struct {
	Text string
}

const (
	registerMessageText       = "if the email is not already registered, a verification code has been sent"
	resendMessageText         = "if the account exists and is unverified, a new code has been sent"
	forgotPasswordMessageText = "if the email is registered, a password reset link has been sent"
	resetPasswordMessageText  = "password has been reset, please sign in again"
)

// genericMessage is the single shared builder behind every generic response.
// All branches of an operation call it with the same constant, which keeps
// the responses byte-identical by construction.
func genericMessage(text string) Message {
	return Message{Text: text}
}
