package tokenward

import (
	"context"
	"time"

	"github.com/averano/tokenward/token"
)

// AccountStatus represents the lifecycle state of an account as seen by the
// token engine. Anything other than AccountActive rejects every token issued
// for the account.
type AccountStatus uint8

const (
	// AccountActive is the only status that passes verification.
	AccountActive AccountStatus = iota
	// AccountDisabled marks an administratively suspended account.
	AccountDisabled
	// AccountDeleted marks an account removed by the owner. Providers may
	// also signal deletion by returning ErrAccountNotFound outright.
	AccountDeleted
)

// AccountRecord is the slice of the credential store the token engine needs:
// digest for Login, status for the active check, and the security epoch that
// pins every issued token to the account's current credential generation.
type AccountRecord struct {
	ID             string
	Identifier     string
	PasswordDigest string
	Status         AccountStatus
	SecurityEpoch  uint64
}

// Active reports whether tokens for this account may pass verification.
func (r AccountRecord) Active() bool {
	return r.Status == AccountActive
}

// AccountProvider is the contract callers implement to connect tokenward to
// their credential store. Lookups run on every verification, so
// implementations should be a single indexed read.
//
// GetAccount and GetAccountByIdentifier return ErrAccountNotFound for missing
// records. BumpSecurityEpoch must atomically advance the epoch and return the
// new value; it is the O(1) "log out everywhere" primitive, since tokens
// carrying the old epoch fail verification without being enumerated.
type AccountProvider interface {
	GetAccount(ctx context.Context, id string) (AccountRecord, error)
	GetAccountByIdentifier(ctx context.Context, identifier string) (AccountRecord, error)
	BumpSecurityEpoch(ctx context.Context, id string) (uint64, error)
}

// TokenPair is the unit of issuance: both tokens are minted together with the
// same security epoch and independent jtis.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Identity is the successful result of Verify: who the token belongs to and
// the claims the caller may want to propagate.
type Identity struct {
	AccountID string
	TokenID   string
	TokenType token.Type
	Epoch     uint64
	ExpiresAt time.Time
}
