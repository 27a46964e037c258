package rate

import "errors"

var (
	// ErrRateLimited signals the failed-attempt cap has been reached.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures talking to Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
