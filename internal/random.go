package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

const (
	refreshTokenRawSize = 48
	resetTokenRawSize   = 32
	resetTokenHexSize   = resetTokenRawSize * 2
)

// NewRefreshToken returns a fresh opaque refresh token: 48 random bytes
// encoded as base64url without padding. The token is the only credential a
// caller holds for a session; the store keys the session by its digest.
func NewRefreshToken() (string, error) {
	var raw [refreshTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashRefreshToken derives the storage key digest for a refresh token.
func HashRefreshToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// NewResetToken returns a fresh password reset token: 32 random bytes as
// lowercase hex, 64 characters total.
func NewResetToken() (string, error) {
	var raw [resetTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// IsResetTokenShaped reports whether a candidate matches the reset token
// wire shape (64 lowercase hex characters). Anything else can be rejected
// without touching the store.
func IsResetTokenShaped(token string) bool {
	if len(token) != resetTokenHexSize {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// HashResetToken derives the storage key digest for a reset token.
func HashResetToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// HashFingerprint digests an opaque device fingerprint for session binding.
// Only the digest is ever stored or compared.
func HashFingerprint(fingerprint string) [32]byte {
	return sha256.Sum256([]byte(fingerprint))
}

// HashCode digests a verification code for at-rest storage.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// NewVerificationCode returns a numeric code of the requested length. Each
// digit is drawn independently so leading zeros are as likely as any other
// digit.
func NewVerificationCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
