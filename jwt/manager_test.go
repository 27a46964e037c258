package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"
)

func newHS256Manager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()

	m, err := NewManager(Config{
		AccessTTL:     ttl,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-secret"),
		Issuer:        "authkit-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestCreateParseRoundTrip(t *testing.T) {
	m := newHS256Manager(t, time.Minute)

	token, err := m.CreateAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "u1" {
		t.Fatalf("UID = %s, want u1", claims.UID)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("Email = %s, want alice@example.com", claims.Email)
	}
	if claims.Subject != "u1" {
		t.Fatalf("Subject = %s, want u1", claims.Subject)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	m := newHS256Manager(t, time.Minute)

	other, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("different-secret"),
		Issuer:        "authkit-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := other.CreateAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("token signed with a different key accepted")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := newHS256Manager(t, -time.Minute)

	token, err := m.CreateAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	m := newHS256Manager(t, time.Minute)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.ParseAccess(token); err == nil {
			t.Fatalf("garbage token accepted: %q", token)
		}
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey failed: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey failed: %v", err)
	}

	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}),
		PublicKey:     pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
		Issuer:        "authkit-test",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := m.CreateAccess("u1", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UID != "u1" {
		t.Fatalf("UID = %s, want u1", claims.UID)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256}); err == nil {
		t.Fatal("hs256 without a key accepted")
	}
	if _, err := NewManager(Config{AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte("k")}); err == nil {
		t.Fatal("zero TTL accepted")
	}
	if _, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: "rs512", PrivateKey: []byte("k")}); err == nil {
		t.Fatal("unsupported method accepted")
	}
}
