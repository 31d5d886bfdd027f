// Package middleware provides net/http glue for tokenward. Guard wraps a
// handler chain so that only requests carrying a verifiable bearer token
// reach the inner handler, and IdentityFromContext recovers the verified
// identity downstream.
package middleware
