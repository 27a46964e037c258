package authkit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// testConfig keeps Argon2id at the validation floor so tests stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("test-secret")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	return cfg
}

type engineOption func(*Builder)

func withMailer(m Mailer) engineOption {
	return func(b *Builder) { b.WithMailer(m) }
}

func withAuditSink(sink AuditSink) engineOption {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

func withConfig(cfg Config) engineOption {
	return func(b *Builder) { b.WithConfig(cfg) }
}

func newTestEngine(t *testing.T, rdb *redis.Client, store CredentialStore, opts ...engineOption) *Engine {
	t.Helper()

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithMetricsEnabled(true)

	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

// mockCredentialStore is an in-memory CredentialStore with call counters so
// tests can assert which branches touched persistent storage.
type mockCredentialStore struct {
	mu      sync.Mutex
	byID    map[string]User
	byEmail map[string]string

	findByEmailCalls  int
	findByIDCalls     int
	insertCalls       int
	markVerifiedCalls int
	updateHashCalls   int

	insertErr error
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

func (s *mockCredentialStore) put(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
}

func (s *mockCredentialStore) get(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	return u, ok
}

func (s *mockCredentialStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.findByEmailCalls++
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNoUser
	}
	u := s.byID[id]
	if u.DeletedAt != nil {
		return nil, ErrNoUser
	}
	return &u, nil
}

func (s *mockCredentialStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.findByIDCalls++
	u, ok := s.byID[id]
	if !ok || u.DeletedAt != nil {
		return nil, ErrNoUser
	}
	return &u, nil
}

func (s *mockCredentialStore) Insert(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertCalls++
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, exists := s.byEmail[user.Email]; exists {
		return ErrDuplicateEmail
	}
	s.byID[user.ID] = *user
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *mockCredentialStore) MarkEmailVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markVerifiedCalls++
	u, ok := s.byID[id]
	if !ok {
		return ErrNoUser
	}
	u.EmailVerified = true
	s.byID[id] = u
	return nil
}

func (s *mockCredentialStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateHashCalls++
	u, ok := s.byID[id]
	if !ok {
		return ErrNoUser
	}
	u.PasswordHash = hash
	s.byID[id] = u
	return nil
}

func (s *mockCredentialStore) calls() (findByEmail, findByID, insert int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByEmailCalls, s.findByIDCalls, s.insertCalls
}

// seedUser hashes the password with the engine's live parameters and stores
// a verified account.
func seedUser(t *testing.T, engine *Engine, store *mockCredentialStore, email, plaintext string) User {
	t.Helper()

	hash, err := engine.passwordHash.Hash(plaintext)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	now := time.Now()
	u := User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	store.put(u)
	return u
}

// testMailer records deliveries on channels so tests can wait for the async
// dispatcher.
type testMailer struct {
	codes  chan mailDelivery
	resets chan mailDelivery
}

type mailDelivery struct {
	email  string
	secret string
}

func newTestMailer() *testMailer {
	return &testMailer{
		codes:  make(chan mailDelivery, 16),
		resets: make(chan mailDelivery, 16),
	}
}

func (m *testMailer) SendVerificationCode(_ context.Context, email, code string) error {
	m.codes <- mailDelivery{email: email, secret: code}
	return nil
}

func (m *testMailer) SendPasswordResetLink(_ context.Context, email, token string) error {
	m.resets <- mailDelivery{email: email, secret: token}
	return nil
}

func (m *testMailer) waitCode(t *testing.T) mailDelivery {
	t.Helper()
	select {
	case d := <-m.codes:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for verification code delivery")
		return mailDelivery{}
	}
}

func (m *testMailer) waitReset(t *testing.T) mailDelivery {
	t.Helper()
	select {
	case d := <-m.resets:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reset link delivery")
		return mailDelivery{}
	}
}
