// Package session provides Redis-backed session persistence and compact
// binary session encoding for the refresh hot path.
//
// # Binary encoding
//
// Sessions are stored as a compact binary blob keyed by the refresh token's
// SHA-256 digest. Two schema versions exist: v1 carries no device binding,
// v2 appends a fingerprint digest. The encoder is append-only; new versions
// add fields but never reinterpret old ones, so sessions written before
// fingerprint binding existed stay readable and keep their unbound
// semantics.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model.
// It does NOT issue tokens, compare fingerprints, or enforce authentication
// policy. Those decisions belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authkit or jwt (no upward imports).
//   - See plaintext refresh tokens (callers pass digests).
//   - Decide what a missing or mismatched session means for the caller.
package session
