// Package jwt manages access-token issuance and verification with pinned
// signing algorithms and strict claim validation.
package jwt
