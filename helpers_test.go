package tokenward

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/averano/tokenward/password"
)

const testPassword = "correct-horse-battery"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func serviceTestConfig(t *testing.T) Config {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey failed: %v", err)
	}

	cfg := defaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = []byte(priv.Public().(ed25519.PublicKey))
	cfg.Token.Issuer = "tokenward-test"
	// Cheap argon2 so login tests stay fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Store.Timeout = time.Second
	return cfg
}

func newTestService(t *testing.T, cfg Config, accounts AccountProvider) (*Service, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	svc, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccounts(accounts).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return svc, mr, func() {
		svc.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// seedTestAccount hashes testPassword under cfg's parameters and registers
// one active account with the provider.
func seedTestAccount(t *testing.T, cfg Config, provider *testProvider, identifier string) AccountRecord {
	t.Helper()

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	digest, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	return provider.put(identifier, digest)
}

// testProvider is a map-backed AccountProvider with failure injection for
// outage tests. timeoutNext makes the next n reads hang until the per-call
// deadline, which is how the retry tests drive store timeouts.
type testProvider struct {
	mu           sync.RWMutex
	byID         map[string]AccountRecord
	byIdentifier map[string]string
	failWith     error
	slowReads    int
	reads        int
}

func newTestProvider() *testProvider {
	return &testProvider{
		byID:         make(map[string]AccountRecord),
		byIdentifier: make(map[string]string),
	}
}

func (p *testProvider) put(identifier, digest string) AccountRecord {
	rec := AccountRecord{
		ID:             uuid.NewString(),
		Identifier:     identifier,
		PasswordDigest: digest,
		Status:         AccountActive,
		SecurityEpoch:  1,
	}

	p.mu.Lock()
	p.byID[rec.ID] = rec
	p.byIdentifier[identifier] = rec.ID
	p.mu.Unlock()

	return rec
}

func (p *testProvider) setStatus(id string, status AccountStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec, ok := p.byID[id]; ok {
		rec.Status = status
		p.byID[id] = rec
	}
}

func (p *testProvider) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec, ok := p.byID[id]; ok {
		delete(p.byIdentifier, rec.Identifier)
		delete(p.byID, id)
	}
}

func (p *testProvider) failAll(err error) {
	p.mu.Lock()
	p.failWith = err
	p.mu.Unlock()
}

func (p *testProvider) timeoutNext(n int) {
	p.mu.Lock()
	p.slowReads = n
	p.mu.Unlock()
}

func (p *testProvider) readCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reads
}

// beginRead counts the read and, while slow reads are armed, blocks until
// the caller's deadline fires.
func (p *testProvider) beginRead(ctx context.Context) error {
	p.mu.Lock()
	p.reads++
	stall := p.slowReads > 0
	if stall {
		p.slowReads--
	}
	p.mu.Unlock()

	if stall {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *testProvider) GetAccount(ctx context.Context, id string) (AccountRecord, error) {
	if err := p.beginRead(ctx); err != nil {
		return AccountRecord{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.failWith != nil {
		return AccountRecord{}, p.failWith
	}
	rec, ok := p.byID[id]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return rec, nil
}

func (p *testProvider) GetAccountByIdentifier(ctx context.Context, identifier string) (AccountRecord, error) {
	if err := p.beginRead(ctx); err != nil {
		return AccountRecord{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.failWith != nil {
		return AccountRecord{}, p.failWith
	}
	id, ok := p.byIdentifier[identifier]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return p.byID[id], nil
}

func (p *testProvider) BumpSecurityEpoch(_ context.Context, id string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failWith != nil {
		return 0, p.failWith
	}
	rec, ok := p.byID[id]
	if !ok {
		return 0, ErrAccountNotFound
	}
	rec.SecurityEpoch++
	p.byID[id] = rec
	return rec.SecurityEpoch, nil
}

// stallHook holds single Redis commands until the caller's deadline for a
// configured number of calls, driving registry timeouts in retry tests.
// Pipelines pass through untouched.
type stallHook struct {
	mu    sync.Mutex
	stall int
}

func (h *stallHook) stallNext(n int) {
	h.mu.Lock()
	h.stall = n
	h.mu.Unlock()
}

func (h *stallHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *stallHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		stall := h.stall > 0
		if stall {
			h.stall--
		}
		h.mu.Unlock()

		if stall {
			<-ctx.Done()
			return ctx.Err()
		}
		return next(ctx, cmd)
	}
}

func (h *stallHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}
