// Package authkit implements the credential and session lifecycle for the
// homefund backend: registration with email verification, Argon2id password
// authentication with timing-attack equalization, rotating opaque refresh
// tokens bound to a device fingerprint, brute-force lockout, and password
// reset with mass session invalidation.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Engine], [Builder], [Config],
// the [CredentialStore] and [Mailer] collaborator interfaces, and value types
// (AuthResult, Message, MetricsSnapshot). Token generation, session encoding,
// lockout counters, and ephemeral-record stores live under internal/ and are
// never exported.
//
// # State model
//
// Durable user records live behind [CredentialStore]. Every other piece of
// state — verification codes, reset tokens, lockout counters, sessions and
// the per-user session index — lives in Redis with a TTL and self-expires;
// the only explicit deletions are early consumption (code verified, token
// used, session revoked).
package authkit
