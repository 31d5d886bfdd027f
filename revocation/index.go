package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TrackIssued records a freshly issued refresh jti for subject. The marker
// key expires with the token; the subject set is what ActiveRefreshCount
// reads when a concurrent-session limit is configured.
//
//	Performance: 3 Redis commands in one transaction.
func (r *Registry) TrackIssued(ctx context.Context, subject, jti string, ttl time.Duration) error {
	if ttl < minEntryTTL {
		ttl = minEntryTTL
	}

	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.issuedKey(subject, jti), 1, ttl)
		pipe.SAdd(ctx, r.subjectIndexKey(subject), jti)
		pipe.Expire(ctx, r.subjectIndexKey(subject), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Untrack removes a rotated or revoked refresh jti from the subject index.
func (r *Registry) Untrack(ctx context.Context, subject, jti string) error {
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.issuedKey(subject, jti))
		pipe.SRem(ctx, r.subjectIndexKey(subject), jti)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveRefreshCount counts the subject's live refresh tokens. Index members
// whose marker key has lapsed are pruned on the way through, so the set never
// inflates the count with naturally expired tokens.
//
// Not fully atomic: a token issued between the SMEMBERS read and the EXISTS
// pipeline is missed by this call and picked up by the next one. The limit
// check tolerates that; it is a policy cap, not an accounting invariant.
func (r *Registry) ActiveRefreshCount(ctx context.Context, subject string) (int, error) {
	indexKey := r.subjectIndexKey(subject)

	jtis, err := r.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(jtis) == 0 {
		return 0, nil
	}

	pipe := r.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(jtis))
	for i, jti := range jtis {
		existsCmds[i] = pipe.Exists(ctx, r.issuedKey(subject, jti))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := 0
	var stale []interface{}
	for i, cmd := range existsCmds {
		n, cmdErr := cmd.Result()
		if cmdErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		if n > 0 {
			live++
		} else {
			stale = append(stale, jtis[i])
		}
	}

	if len(stale) > 0 {
		if err := r.redis.SRem(ctx, indexKey, stale...).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return live, nil
}

// ClearSubject drops the subject's issued-token index and markers. Called on
// revoke-all; the epoch bump is what actually invalidates the tokens.
func (r *Registry) ClearSubject(ctx context.Context, subject string) error {
	indexKey := r.subjectIndexKey(subject)

	jtis, err := r.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, jti := range jtis {
			pipe.Del(ctx, r.issuedKey(subject, jti))
		}
		pipe.Del(ctx, indexKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
