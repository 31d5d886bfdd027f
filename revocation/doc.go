// Package revocation tracks revoked token identifiers in Redis until the
// moment they would have expired naturally, so the registry never grows
// beyond the set of still-live tokens.
//
// Revocation is monotonic: once a jti is marked, IsRevoked reports true until
// the entry's TTL elapses, never earlier. Claim is the rotation primitive:
// an atomic first-writer-wins insert that lets exactly one of several racing
// refresh calls win the old token.
//
// Every Redis failure wraps [ErrRedisUnavailable]. Callers treat that as
// "cannot confirm the token is valid" and reject; the registry is never
// silently bypassed.
package revocation
