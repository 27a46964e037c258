package authkit

import (
	"errors"
	"time"
)

// Config is the engine's full configuration. It is copied at Build time and
// treated as immutable afterwards.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Password      PasswordConfig
	Verification  VerificationConfig
	PasswordReset PasswordResetConfig
	Lockout       LockoutConfig
	Mail          MailConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access-token signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures refresh-token sessions.
type SessionConfig struct {
	RefreshTTL  time.Duration
	RedisPrefix string
	UserPrefix  string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters (Memory in KB).
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// VerificationConfig configures email verification codes.
type VerificationConfig struct {
	CodeTTL     time.Duration
	CodeDigits  int
	RedisPrefix string
}

// PasswordResetConfig configures password reset tokens.
type PasswordResetConfig struct {
	TokenTTL    time.Duration
	RedisPrefix string
}

// LockoutConfig configures the brute-force lockout guard.
type LockoutConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// MailConfig configures the async mail dispatcher. Delivery is best-effort:
// a full buffer drops the message rather than blocking the request path.
type MailConfig struct {
	BufferSize int
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures in-process metrics collection.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
		},
		Session: SessionConfig{
			RefreshTTL:  7 * 24 * time.Hour,
			RedisPrefix: "as",
			UserPrefix:  "au:",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    4,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Verification: VerificationConfig{
			CodeTTL:     10 * time.Minute,
			CodeDigits:  6,
			RedisPrefix: "av",
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:    time.Hour,
			RedisPrefix: "apr",
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
		},
		Mail: MailConfig{
			BufferSize: 256,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the default configuration. Callers adjust fields and
// pass the result to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internally inconsistent or unsafe
// values. It is called by Build.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "hs256" && c.JWT.SigningMethod != "ed25519" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && (len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0) {
		return errors.New("ed25519 requires PrivateKey and PublicKey")
	}

	// Session
	if c.Session.RefreshTTL <= 0 {
		return errors.New("Session RefreshTTL must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Verification
	if c.Verification.CodeTTL <= 0 {
		return errors.New("Verification CodeTTL must be > 0")
	}
	if c.Verification.CodeDigits < 4 || c.Verification.CodeDigits > 10 {
		return errors.New("Verification CodeDigits must be between 4 and 10")
	}

	// Password Reset
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}

	// Lockout
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}

	// Mail
	if c.Mail.BufferSize <= 0 {
		return errors.New("Mail BufferSize must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
