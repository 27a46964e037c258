// Package internal contains helper utilities that are intentionally private to
// authkit, including secure token generation and digest helpers.
//
// # Sub-packages
//
//   - rate — Redis-backed failed-login counter primitives
//   - stores — short-lived record stores (verification codes, reset tokens)
//
// # What this package must NOT do
//
//   - Export types that appear in the public authkit API.
//   - Be imported by any package outside the authkit module.
package internal
