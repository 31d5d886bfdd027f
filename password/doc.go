// Package password is the hashing primitive the token engine treats as a
// black box: Hash produces an argon2id digest in PHC string format, Verify
// checks a password against one in constant time. Nothing here knows about
// tokens or sessions.
package password
