package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reg := NewRegistry(rdb, "twr")

	return reg, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRevokeAndIsRevoked(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	revoked, err := reg.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("fresh jti must not be revoked")
	}

	if err := reg.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	revoked, err = reg.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if !revoked {
		t.Fatal("jti should be revoked")
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	if err := reg.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("first Revoke failed: %v", err)
	}
	first, ok, err := reg.RevokedAt(ctx, "jti-1")
	if err != nil || !ok {
		t.Fatalf("RevokedAt after first revoke: ok=%v err=%v", ok, err)
	}

	// Re-revoking keeps the original entry and timestamp.
	if err := reg.Revoke(ctx, "jti-1", time.Hour); err != nil {
		t.Fatalf("second Revoke failed: %v", err)
	}
	second, ok, err := reg.RevokedAt(ctx, "jti-1")
	if err != nil || !ok {
		t.Fatalf("RevokedAt after second revoke: ok=%v err=%v", ok, err)
	}
	if !first.Equal(second) {
		t.Fatalf("revocation time changed: %v -> %v", first, second)
	}
}

func TestRevokeNonPositiveTTLIsNoop(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	if err := reg.Revoke(ctx, "jti-1", 0); err != nil {
		t.Fatalf("Revoke with zero ttl failed: %v", err)
	}
	if err := reg.Revoke(ctx, "jti-2", -time.Minute); err != nil {
		t.Fatalf("Revoke with negative ttl failed: %v", err)
	}

	for _, jti := range []string{"jti-1", "jti-2"} {
		revoked, err := reg.IsRevoked(ctx, jti)
		if err != nil {
			t.Fatalf("IsRevoked failed: %v", err)
		}
		if revoked {
			t.Fatalf("jti %q recorded despite non-positive ttl", jti)
		}
	}
}

func TestRevocationEntryExpires(t *testing.T) {
	reg, mr, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	if err := reg.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	revoked, err := reg.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("entry should have lapsed with the token's ttl")
	}

	_, ok, err := reg.RevokedAt(ctx, "jti-1")
	if err != nil {
		t.Fatalf("RevokedAt failed: %v", err)
	}
	if ok {
		t.Fatal("lapsed entry should not report a revocation time")
	}
}

func TestClaimExactlyOnce(t *testing.T) {
	reg, _, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	claimed, err := reg.Claim(ctx, "jti-1", time.Minute)
	if err != nil {
		t.Fatalf("first Claim failed: %v", err)
	}
	if !claimed {
		t.Fatal("first claim must win")
	}

	claimed, err = reg.Claim(ctx, "jti-1", time.Minute)
	if err != nil {
		t.Fatalf("second Claim failed: %v", err)
	}
	if claimed {
		t.Fatal("second claim must lose")
	}

	// The claim doubles as a revocation entry.
	revoked, err := reg.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if !revoked {
		t.Fatal("claimed jti must read as revoked")
	}
}

func TestRegistryUnavailable(t *testing.T) {
	reg, mr, done := newTestRegistry(t)
	defer done()
	ctx := context.Background()

	mr.Close()

	if _, err := reg.IsRevoked(ctx, "jti-1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("IsRevoked: expected ErrRedisUnavailable, got %v", err)
	}
	if err := reg.Revoke(ctx, "jti-1", time.Minute); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Revoke: expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := reg.Claim(ctx, "jti-1", time.Minute); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Claim: expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := reg.Ping(ctx); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Ping: expected ErrRedisUnavailable, got %v", err)
	}
}

func TestDefaultPrefix(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	reg := NewRegistry(rdb, "")
	ctx := context.Background()

	if err := reg.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if !mr.Exists("twr:rv:jti-1") {
		t.Fatal("empty prefix should fall back to twr")
	}
}
