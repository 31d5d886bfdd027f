// Package account ships two implementations of the tokenward.AccountProvider
// contract: an in-memory provider for tests and examples, and a Postgres
// provider for production deployments. Both treat the security epoch as an
// atomically advancing counter.
package account
