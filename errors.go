package tokenward

import "errors"

var (
	// ErrTokenInvalid covers undecodable tokens, bad signatures, and tokens
	// of the wrong type presented to Verify.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when a token's TTL has elapsed or its
	// security epoch no longer matches the account's current epoch. Both
	// mean the same thing to the caller: get a new token.
	ErrTokenExpired = errors.New("token expired")
	// ErrRefreshExpired is the refresh-token flavor of ErrTokenExpired.
	// Same kind, distinct message, so callers can tell "refresh your access
	// token" apart from "log in again".
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrTokenRevoked is returned when the token's jti is present in the
	// revocation registry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrAccountNotFound is returned when the token's subject account is
	// missing, disabled, or deleted.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTokenMissing is returned by callers (middleware) when no token was
	// presented at all. The Service itself never returns it.
	ErrTokenMissing = errors.New("missing token")
	// ErrInvalidCredentials is returned by Login on a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionLimitExceeded is returned by IssuePair and Login when the
	// account already holds MaxSessionsPerAccount live refresh tokens.
	ErrSessionLimitExceeded = errors.New("session limit exceeded")

	// ErrRegistryUnavailable marks revocation registry outages. Systemic:
	// maps to a 5xx, never to one of the token error kinds.
	ErrRegistryUnavailable = errors.New("revocation registry unavailable")
	// ErrStoreUnavailable marks credential store outages. Systemic like
	// ErrRegistryUnavailable.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	// ErrServiceNotReady is returned when a nil or unbuilt Service is used.
	ErrServiceNotReady = errors.New("service not initialized")
)

// ErrorKind is the closed taxonomy exposed to transport layers. Every error
// returned by Service collapses into exactly one kind via Kind.
type ErrorKind uint8

const (
	// KindUnknown is the zero kind; Kind returns it for nil and for errors
	// tokenward did not produce.
	KindUnknown ErrorKind = iota
	// KindInvalidToken maps to ErrTokenInvalid and ErrInvalidCredentials.
	KindInvalidToken
	// KindTokenExpired maps to ErrTokenExpired and ErrRefreshExpired.
	KindTokenExpired
	// KindTokenRevoked maps to ErrTokenRevoked.
	KindTokenRevoked
	// KindUserNotFound maps to ErrAccountNotFound.
	KindUserNotFound
	// KindMissingToken maps to ErrTokenMissing.
	KindMissingToken
	// KindUnavailable maps to registry/store outages. 5xx-equivalent.
	KindUnavailable
)

// Kind classifies err into the closed ErrorKind taxonomy. Wrapped errors are
// matched with errors.Is, so callers may decorate Service errors freely.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrRefreshExpired):
		return KindTokenExpired
	case errors.Is(err, ErrTokenRevoked):
		return KindTokenRevoked
	case errors.Is(err, ErrAccountNotFound):
		return KindUserNotFound
	case errors.Is(err, ErrTokenMissing):
		return KindMissingToken
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrInvalidCredentials):
		return KindInvalidToken
	case errors.Is(err, ErrRegistryUnavailable), errors.Is(err, ErrStoreUnavailable):
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// String returns the stable wire label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidToken:
		return "INVALID_TOKEN"
	case KindTokenExpired:
		return "TOKEN_EXPIRED"
	case KindTokenRevoked:
		return "TOKEN_REVOKED"
	case KindUserNotFound:
		return "USER_NOT_FOUND"
	case KindMissingToken:
		return "MISSING_TOKEN"
	case KindUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}
