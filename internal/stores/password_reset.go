package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrResetNotFound         = errors.New("reset record not found")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

// PasswordResetStore maps reset token digests to user IDs. Tokens are
// single-use: Consume removes the record in the same command that reads it,
// so two racing resets with the same token cannot both succeed.
type PasswordResetStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewPasswordResetStore(redisClient redis.UniversalClient, prefix string) *PasswordResetStore {
	if prefix == "" {
		prefix = "apr"
	}
	return &PasswordResetStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *PasswordResetStore) key(tokenHash [32]byte) string {
	return fmt.Sprintf("%s:%x", s.prefix, tokenHash)
}

// Save stores a reset token digest for a user. Issuing a new token does not
// revoke earlier ones; each expires on its own TTL.
func (s *PasswordResetStore) Save(ctx context.Context, tokenHash [32]byte, userID string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(tokenHash), userID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

// Consume atomically fetches and deletes the record for a token digest,
// returning the owning user ID.
//
// Performance: one Redis round trip (GETDEL).
func (s *PasswordResetStore) Consume(ctx context.Context, tokenHash [32]byte) (string, error) {
	userID, err := s.redis.GetDel(ctx, s.key(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrResetNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return userID, nil
}
