// Package rate provides the Redis-backed failed-login counter that drives
// account lockout.
//
// # Window semantics
//
// Fixed-window counters: INCR pipelined with EXPIRE NX, so the window is
// anchored at the first failure and the counter always carries a TTL.
// Key prefix: ala: (per-email login attempts).
//
// # What this package must NOT do
//
//   - Decide lockout policy responses (the Engine maps counts to errors).
//   - Be imported outside the authkit module.
package rate
