package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport failure returned by the
// registry. Verification fails closed on it.
var ErrRedisUnavailable = errors.New("redis unavailable")

const minEntryTTL = time.Second

// Registry is a Redis-backed revocation list keyed by jti, plus the
// per-subject index of issued refresh tokens used for concurrent-session
// limits.
type Registry struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRegistry creates a Registry on the given Redis client. prefix namespaces
// the keys; the default is "twr".
func NewRegistry(redisClient redis.UniversalClient, prefix string) *Registry {
	if prefix == "" {
		prefix = "twr"
	}
	return &Registry{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (r *Registry) key(jti string) string {
	return r.prefix + ":rv:" + jti
}

func (r *Registry) issuedKey(subject, jti string) string {
	return r.prefix + ":is:" + subject + ":" + jti
}

func (r *Registry) subjectIndexKey(subject string) string {
	return r.prefix + ":ix:" + subject
}

// Revoke marks jti as revoked for ttl. Idempotent: re-revoking an already
// revoked jti is a no-op success and does not extend the original entry, so
// the recorded revocation time and expiry stay those of the first call.
// A non-positive ttl means the token is already past its natural expiry and
// there is nothing to record.
func (r *Registry) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if ttl < minEntryTTL {
		ttl = minEntryTTL
	}

	err := r.redis.SetNX(ctx, r.key(jti), strconv.FormatInt(time.Now().Unix(), 10), ttl).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Claim atomically inserts the revocation entry for jti and reports whether
// this call was the first to do so. Refresh rotation rides on it: the winner
// of a race gets true and mints the new pair, every loser gets false and
// surfaces the jti as revoked.
func (r *Registry) Claim(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl < minEntryTTL {
		ttl = minEntryTTL
	}

	claimed, err := r.redis.SetNX(ctx, r.key(jti), strconv.FormatInt(time.Now().Unix(), 10), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return claimed, nil
}

// IsRevoked reports whether jti currently appears in the registry.
//
//	Performance: 1 Redis EXISTS.
func (r *Registry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// RevokedAt returns the recorded revocation time for jti. The second result
// is false when the jti is not revoked (or its entry already lapsed).
func (r *Registry) RevokedAt(ctx context.Context, jti string) (time.Time, bool, error) {
	raw, err := r.redis.Get(ctx, r.key(jti)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: corrupt revocation entry", ErrRedisUnavailable)
	}
	return time.Unix(unix, 0), true, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (r *Registry) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
