package account

import (
	"context"
	"sync"

	"github.com/google/uuid"

	tokenward "github.com/averano/tokenward"
)

// MemoryProvider is a map-backed AccountProvider. It honors context
// cancellation so timeout behavior can be exercised without a real store.
type MemoryProvider struct {
	mu           sync.RWMutex
	byID         map[string]tokenward.AccountRecord
	byIdentifier map[string]string
}

// NewMemoryProvider returns an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		byID:         make(map[string]tokenward.AccountRecord),
		byIdentifier: make(map[string]string),
	}
}

// Create registers an account with the given identifier and password digest
// and returns its record. The security epoch starts at 1.
func (p *MemoryProvider) Create(identifier, passwordDigest string) tokenward.AccountRecord {
	rec := tokenward.AccountRecord{
		ID:             uuid.NewString(),
		Identifier:     identifier,
		PasswordDigest: passwordDigest,
		Status:         tokenward.AccountActive,
		SecurityEpoch:  1,
	}

	p.mu.Lock()
	p.byID[rec.ID] = rec
	p.byIdentifier[identifier] = rec.ID
	p.mu.Unlock()

	return rec
}

// SetStatus updates the lifecycle status of an account.
func (p *MemoryProvider) SetStatus(id string, status tokenward.AccountStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec, ok := p.byID[id]; ok {
		rec.Status = status
		p.byID[id] = rec
	}
}

// Remove deletes the account record entirely, simulating hard deletion.
// Subsequent lookups fail with ErrAccountNotFound.
func (p *MemoryProvider) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec, ok := p.byID[id]; ok {
		delete(p.byIdentifier, rec.Identifier)
		delete(p.byID, id)
	}
}

// GetAccount implements tokenward.AccountProvider.
func (p *MemoryProvider) GetAccount(ctx context.Context, id string) (tokenward.AccountRecord, error) {
	if err := ctx.Err(); err != nil {
		return tokenward.AccountRecord{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.byID[id]
	if !ok {
		return tokenward.AccountRecord{}, tokenward.ErrAccountNotFound
	}
	return rec, nil
}

// GetAccountByIdentifier implements tokenward.AccountProvider.
func (p *MemoryProvider) GetAccountByIdentifier(ctx context.Context, identifier string) (tokenward.AccountRecord, error) {
	if err := ctx.Err(); err != nil {
		return tokenward.AccountRecord{}, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byIdentifier[identifier]
	if !ok {
		return tokenward.AccountRecord{}, tokenward.ErrAccountNotFound
	}
	return p.byID[id], nil
}

// BumpSecurityEpoch implements tokenward.AccountProvider.
func (p *MemoryProvider) BumpSecurityEpoch(ctx context.Context, id string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.byID[id]
	if !ok {
		return 0, tokenward.ErrAccountNotFound
	}
	rec.SecurityEpoch++
	p.byID[id] = rec
	return rec.SecurityEpoch, nil
}
