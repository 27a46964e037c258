// Package stores provides Redis-backed, short-lived record stores for the
// email verification and password reset flows.
//
// # Design
//
// Each store persists a record in Redis under a secret digest with a TTL.
// Records are single-use: verification codes are consumed under a WATCH
// transaction with constant-time compare, reset tokens via a single GETDEL.
// Plaintext secrets never reach Redis.
//
// # What this package must NOT do
//
//   - Import authkit or any sibling internal package.
//   - Generate codes or tokens (callers supply digests).
//   - Use non-constant-time comparisons for secret matching.
package stores
