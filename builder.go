package authkit

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/homefund/authkit/internal/rate"
	"github.com/homefund/authkit/internal/stores"
	"github.com/homefund/authkit/jwt"
	"github.com/homefund/authkit/password"
	"github.com/homefund/authkit/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder is single-use: Build can only be
// called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials CredentialStore
	mailer      Mailer
	auditSink   AuditSink

	built bool
}

// New returns a [Builder] initialized with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing all ephemeral state.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the persistent user store.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithMailer sets the delivery backend for verification codes and reset
// links. Optional; without one, codes are generated and stored but never
// delivered.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled toggles in-process metrics collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the login latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires all components, and returns a
// ready [Engine]. It also derives the fixed dummy hash used to equalize
// login timing for unknown emails, so the first unlucky login does not pay
// a cold-start penalty.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      cloneConfig(cfg),
		credentials: b.credentials,
	}

	engine.sessionStore = session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.UserPrefix)
	engine.lockout = rate.New(b.redis, rate.Config{
		MaxAttempts: cfg.Lockout.MaxAttempts,
		Window:      cfg.Lockout.Window,
	})
	engine.verificationStore = stores.NewVerificationStore(b.redis, cfg.Verification.RedisPrefix)
	engine.resetStore = stores.NewPasswordResetStore(b.redis, cfg.PasswordReset.RedisPrefix)
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.mail = newMailDispatcher(cfg.Mail, b.mailer)

	ph, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	dummy, err := buildDummyHash(ph)
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	b.built = true

	return engine, nil
}

// buildDummyHash hashes a random throwaway password with the live cost
// parameters. Verifying against it takes the same time as verifying a real
// credential.
func buildDummyHash(ph *password.Hasher) (string, error) {
	var raw [24]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return ph.Hash(base64.RawURLEncoding.EncodeToString(raw[:]))
}
