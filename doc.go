// Package tokenward issues, verifies, rotates, and revokes short-lived API
// credentials: signed JWT access and refresh tokens whose validity always
// reflects the current state of the account they represent.
//
// The package is designed for concurrent server workloads: Service methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The Service holds no mutable in-process state; every
// verification re-reads the revocation registry and the credential store, so a
// revoked jti or a bumped security epoch takes effect immediately.
//
// # Architecture boundaries
//
// tokenward is the public surface. It exposes [Service], [Builder], [Config],
// the [AccountProvider] contract, and value types (TokenPair, Identity,
// MetricsSnapshot). Token encoding lives in the token subpackage, the Redis
// revocation registry in revocation, account provider implementations in
// account, and the password primitive in password.
//
// # Failure policy
//
// Verification fails closed: when the revocation registry or the credential
// store cannot confirm a token is still good, the token is rejected. Registry
// and store outages surface through [ErrRegistryUnavailable] and
// [ErrStoreUnavailable], never as one of the client-error kinds.
package tokenward
