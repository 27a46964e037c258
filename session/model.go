package session

// Session is the server-side state behind one refresh token. It never holds
// the token itself; the store keys it by the token's digest.
//
// HasFingerprint distinguishes "issued without a device fingerprint" from
// "issued with one": a session without a binding accepts refreshes from any
// device, a bound session only from the matching one.
type Session struct {
	UserID string

	FingerprintHash [32]byte
	HasFingerprint  bool

	CreatedAt int64
	ExpiresAt int64
}
