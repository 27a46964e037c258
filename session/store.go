package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no live session exists for a token digest.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionCorrupt is returned when a stored session blob cannot be decoded.
var ErrSessionCorrupt = errors.New("session corrupt")

// ErrRedisUnavailable is an exported wrapper for Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	removeStatusMissing int64 = 0
	removeStatusRemoved int64 = 1
	removeStatusCorrupt int64 = -1
)

// removeSessionScript deletes a session and its user-index entry in one
// atomic step, reporting whether the session still existed. The delete is
// the rotation arbiter: of two concurrent refreshes with the same token,
// exactly one sees existed=1.
const removeSessionScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0, ""}
end
local user_len = string.byte(data, 2)
if not user_len or #data < 2 + user_len then
  redis.call("DEL", KEYS[1])
  return {-1, ""}
end
local user_id = string.sub(data, 3, 2 + user_len)
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. user_id, ARGV[2])
return {1, user_id}
`

var removeSessionLua = redis.NewScript(removeSessionScript)

// Store is a Redis-backed session store keyed by refresh-token digest. It
// maintains a per-user index set so all of a user's sessions can be revoked
// in one call.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	userPrefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the session key namespace, userPrefix the per-user index
// namespace.
func NewStore(redisClient redis.UniversalClient, prefix, userPrefix string) *Store {
	if prefix == "" {
		prefix = "as"
	}
	if userPrefix == "" {
		userPrefix = "au:"
	}
	return &Store{
		redis:      redisClient,
		prefix:     prefix,
		userPrefix: userPrefix,
	}
}

func (s *Store) key(tokenHash [32]byte) string {
	return s.prefix + ":" + hex.EncodeToString(tokenHash[:])
}

func (s *Store) userKey(userID string) string {
	return s.userPrefix + userID
}

// Save persists a [Session] under the token digest and registers it in the
// user's index set. The two writes travel in one transaction so the index
// can never reference a session that was not written.
//
//	Performance: 1 Redis round trip (MULTI SET + SADD).
func (s *Store) Save(ctx context.Context, tokenHash [32]byte, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	sessionKey := s.key(tokenHash)
	userKey := s.userKey(sess.UserID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey, data, ttl)
		pipe.SAdd(ctx, userKey, hex.EncodeToString(tokenHash[:]))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves the session for a token digest. A blob past its recorded
// expiry is treated as absent even if Redis has not evicted it yet.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, tokenHash [32]byte) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}

	if time.Now().Unix() > sess.ExpiresAt {
		if _, _, err := s.Remove(ctx, tokenHash); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}

	return sess, nil
}

// Remove deletes the session for a token digest and its index entry,
// returning the owning user ID and whether the session existed. Exactly one
// of any set of concurrent Remove calls for the same digest observes
// existed=true.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Remove(ctx context.Context, tokenHash [32]byte) (string, bool, error) {
	result, err := removeSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(tokenHash)},
		s.userPrefix,
		hex.EncodeToString(tokenHash[:]),
	).Result()
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) < 2 {
		return "", false, fmt.Errorf("%w: invalid remove script response", ErrRedisUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return "", false, fmt.Errorf("%w: invalid remove script status", ErrRedisUnavailable)
	}

	switch code {
	case removeStatusMissing:
		return "", false, nil
	case removeStatusCorrupt:
		return "", false, ErrSessionCorrupt
	case removeStatusRemoved:
		userID, _ := parts[1].(string)
		return userID, true, nil
	default:
		return "", false, fmt.Errorf("%w: unknown remove script status", ErrRedisUnavailable)
	}
}

// RemoveAllForUser revokes every session tracked for a user and returns the
// number of sessions that were still live.
//
// ATOMICITY NOTE: this operation is not fully atomic. It reads the user's
// index set, then deletes the listed sessions and the set in a transaction.
// A session created between the read and the delete survives; it expires on
// its own TTL or is caught by a second call.
func (s *Store) RemoveAllForUser(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	digests, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessionKeys := make([]string, 0, len(digests))
	for _, digest := range digests {
		sessionKeys = append(sessionKeys, s.prefix+":"+digest)
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(sessionKeys) > 0 {
			deleted = pipe.Del(ctx, sessionKeys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// ActiveSessionCount returns the number of tracked session digests for a
// user. Entries for already-expired sessions may still be counted until the
// next Remove or RemoveAllForUser touches them.
func (s *Store) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
