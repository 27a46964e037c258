// Package middleware exposes an HTTP middleware adapter enforcing bearer
// access-token authorization on top of authkit.Engine validation.
//
// # Guard
//
// [Guard] reads the Authorization header, calls Engine.ValidateAccess, and
// injects the validated claims into the request context where handlers can
// recover them with [ClaimsFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.ValidateAccess.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject.
package middleware
