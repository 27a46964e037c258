package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCodeNotFound           = errors.New("verification code not found")
	ErrCodeMismatch           = errors.New("verification code mismatch")
	ErrVerifyRedisUnavailable = errors.New("verification redis unavailable")
)

// VerificationStore keeps the pending verification code per email address.
// Only the code's digest is stored; an address has at most one live code,
// and saving a new one replaces whatever was pending.
type VerificationStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewVerificationStore(redisClient redis.UniversalClient, prefix string) *VerificationStore {
	if prefix == "" {
		prefix = "av"
	}
	return &VerificationStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *VerificationStore) key(email string) string {
	return s.prefix + ":" + email
}

// Save stores the code digest for an email, replacing any pending code and
// restarting the TTL.
func (s *VerificationStore) Save(ctx context.Context, email string, codeHash [32]byte, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(email), codeHash[:], ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrVerifyRedisUnavailable, err)
	}
	return nil
}

// Consume checks the provided code digest against the stored one and deletes
// the record on a match. The compare-and-delete runs under WATCH so a
// concurrent Save or Consume forces a retry instead of validating a stale
// code.
func (s *VerificationStore) Consume(ctx context.Context, email string, providedHash [32]byte) error {
	const maxRetries = 4
	key := s.key(email)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			stored, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			if len(stored) != len(providedHash) {
				return ErrCodeMismatch
			}

			if subtle.ConstantTimeCompare(stored, providedHash[:]) != 1 {
				return ErrCodeMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return ErrCodeNotFound
			case errors.Is(err, ErrCodeMismatch):
				return err
			default:
				return fmt.Errorf("%w: %v", ErrVerifyRedisUnavailable, err)
			}
		}

		return nil
	}

	return ErrCodeNotFound
}
