// Package token is the pure, stateless codec between a structured token
// payload and its signed compact JWT form.
//
// A Codec never touches the network and holds no mutable state; Encode and
// Decode are safe to call from any number of goroutines. Decode failures are
// classified into [ErrMalformed], [ErrBadSignature], and [ErrExpired] because
// callers map them to different user-facing error kinds. Signature checks run
// before anything else; an expired token with a bad signature reports the bad
// signature.
package token
