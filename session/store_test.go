package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewStore(client, "as", "au:")
}

func testSession(userID string) *Session {
	now := time.Now().Unix()
	return &Session{
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now + 3600,
	}
}

func tokenHash(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

func TestStoreSaveGet(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	hash := tokenHash("t1")
	if err := store.Save(ctx, hash, testSession("u1"), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != "u1" {
		t.Fatalf("UserID = %s, want u1", got.UserID)
	}
	if got.HasFingerprint {
		t.Fatal("unexpected fingerprint on unbound session")
	}
}

func TestStoreGetMissing(t *testing.T) {
	_, store := newTestStore(t)

	_, err := store.Get(context.Background(), tokenHash("missing"))
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestStoreGetExpiredByPayload(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	sess := testSession("u1")
	sess.ExpiresAt = time.Now().Unix() - 10

	hash := tokenHash("t1")
	if err := store.Save(ctx, hash, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Get(ctx, hash); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}

	// The lazy expiry also removed the key and index entry.
	count, err := store.ActiveSessionCount(ctx, "u1")
	if err != nil {
		t.Fatalf("ActiveSessionCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("active sessions = %d, want 0", count)
	}
}

func TestStoreRemoveReturnsOwner(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	hash := tokenHash("t1")
	if err := store.Save(ctx, hash, testSession("u1"), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	userID, existed, err := store.Remove(ctx, hash)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !existed || userID != "u1" {
		t.Fatalf("Remove = (%q, %v), want (u1, true)", userID, existed)
	}

	_, existed, err = store.Remove(ctx, hash)
	if err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}
	if existed {
		t.Fatal("second Remove reported the session as live")
	}
}

// Exactly one concurrent Remove may observe the session. This is what makes
// Remove usable as the rotation arbiter.
func TestStoreRemoveIsAtomic(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	hash := tokenHash("t1")
	if err := store.Save(ctx, hash, testSession("u1"), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	winners := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID, existed, err := store.Remove(ctx, hash)
			if err != nil {
				t.Errorf("Remove failed: %v", err)
				return
			}
			if existed {
				winners <- userID
			}
		}()
	}
	wg.Wait()
	close(winners)

	var count int
	for userID := range winners {
		count++
		if userID != "u1" {
			t.Fatalf("winner saw userID %q, want u1", userID)
		}
	}
	if count != 1 {
		t.Fatalf("%d removers won, want exactly 1", count)
	}
}

func TestStoreRemoveAllForUser(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	for _, token := range []string{"t1", "t2", "t3"} {
		if err := store.Save(ctx, tokenHash(token), testSession("u1"), time.Hour); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := store.Save(ctx, tokenHash("other"), testSession("u2"), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	removed, err := store.RemoveAllForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("RemoveAllForUser failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	for _, token := range []string{"t1", "t2", "t3"} {
		if _, err := store.Get(ctx, tokenHash(token)); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("session %s survived RemoveAllForUser", token)
		}
	}

	// The other user's session is untouched.
	if _, err := store.Get(ctx, tokenHash("other")); err != nil {
		t.Fatalf("unrelated session lost: %v", err)
	}
}

func TestStoreFingerprintRoundTrip(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	sess := testSession("u1")
	sess.FingerprintHash = sha256.Sum256([]byte("device-a"))
	sess.HasFingerprint = true

	hash := tokenHash("t1")
	if err := store.Save(ctx, hash, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.HasFingerprint {
		t.Fatal("fingerprint flag lost")
	}
	if got.FingerprintHash != sess.FingerprintHash {
		t.Fatal("fingerprint hash corrupted")
	}
}

func TestEncodeDecodeVersions(t *testing.T) {
	unbound := testSession("user-with-a-longer-id")
	bound := testSession("u2")
	bound.FingerprintHash = sha256.Sum256([]byte("device"))
	bound.HasFingerprint = true

	for _, sess := range []*Session{unbound, bound} {
		data, err := Encode(sess)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if *got != *sess {
			t.Fatalf("round trip mismatch: %+v vs %+v", got, sess)
		}
	}
}

func TestDecodeGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {9, 2, 'u'}, {1, 200, 'u'}} {
		if _, err := Decode(data); err == nil {
			t.Fatalf("Decode(%v) accepted garbage", data)
		}
	}
}
